package connection

import (
	"context"
	"crypto/rsa"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/openairplay/airplay/internal/liberrors"
	"github.com/openairplay/airplay/pkg/crypto"
	"github.com/openairplay/airplay/pkg/pairing"
	"github.com/openairplay/airplay/pkg/rtp"
	"github.com/openairplay/airplay/pkg/rtsp/base"
	rtspconn "github.com/openairplay/airplay/pkg/rtsp/conn"
	"github.com/openairplay/airplay/pkg/session"
	"github.com/openairplay/airplay/pkg/timing"
)

// defaultReadBufferSize is a single-socket-read chunk size, not a
// protocol limit.
const defaultReadBufferSize = 4096

// Config describes the peer and policy a Manager connects with.
type Config struct {
	Dialect session.Dialect
	URI     string // RTSP request-URI, e.g. "rtsp://192.168.1.5/stream"
	Addr    string // TCP dial address, "host:port"
	Host    string // bare host, used to dial UDP ports after SETUP

	DeviceID       string
	PairingStore   pairing.Store
	ConnectTimeout time.Duration
	TargetLatency  time.Duration

	// PIN authenticates a transient pair-setup when no stored identity
	// exists (or pair-verify with one fails). AllowTransientPairing
	// gates that fallback; with it off, an unpaired device surfaces
	// EventPairingRequired instead, provided PairingStore and DeviceID are
	// set. Without them, and without transient pairing and a PIN, the
	// connection proceeds unpaired.
	PIN                   string
	AllowTransientPairing bool

	Streams []session.StreamDescriptor

	// ReceiverRSAPublicKey encapsulates the AP1 AES audio key; legacy
	// receivers that require RSA-OAEP encryption of the key need this
	// set. Left nil, the ANNOUNCE carries the key unencrypted, which
	// only unprotected AP1 receivers accept.
	ReceiverRSAPublicKey *rsa.PublicKey
}

// Manager drives one controller-to-receiver connection through its full
// lifecycle: dial, pair-verify, the RTSP method sequence, UDP port setup,
// and reconnection on recoverable failure.
type Manager struct {
	mu    sync.Mutex
	cfg   Config
	state State
	stats Stats
	cnt   counters
	bus   bus

	netConn net.Conn
	codec   *rtspconn.Codec
	rsess   *rtspconn.Session
	ctrl    *session.Controller
	sockets *rtp.StreamSockets
	clock   *timing.ClockSync

	// Outbound audio framing state, populated once SETUP negotiates a
	// stream, consumed by SendAudioFrame (pkg/connection/control.go).
	seq       uint16
	ssrc      uint32
	ap1Cipher *rtp.AP1Cipher

	cancel context.CancelFunc
}

// NewManager creates a Manager in StateDisconnected. Call Connect to
// start the connect sequence.
func NewManager(cfg Config) *Manager {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.TargetLatency == 0 {
		cfg.TargetLatency = timing.DefaultTargetLatency
	}
	return &Manager{cfg: cfg, state: StateDisconnected}
}

// Subscribe returns a channel of lifecycle events. Slow subscribers miss
// events rather than blocking the Manager.
func (m *Manager) Subscribe() <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bus.subscribe()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns a snapshot of traffic and health counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.BytesSent = m.cnt.bytesSent.Load()
	s.BytesReceived = m.cnt.bytesReceived.Load()
	return s
}

func (m *Manager) setState(to State) {
	m.mu.Lock()
	from := m.state
	if err := checkTransition(from, to); err != nil {
		// Transitions are all internally driven; a violation here is a
		// programming error, not a peer fault, so it is only recorded,
		// not propagated.
		m.stats.LastError = err
	}
	m.state = to
	m.mu.Unlock()
	m.bus.publish(Event{Kind: EventStateChanged, From: from, To: to})
}

func (m *Manager) emitError(err error) {
	m.mu.Lock()
	m.stats.LastError = err
	m.mu.Unlock()
	m.bus.publish(Event{Kind: EventError, Err: err})
}

// Connect runs the full connect sequence: TCP dial, pairing (pair-verify
// with a stored identity, else pair-setup when a PIN is set and transient
// pairing is allowed), then OPTIONS, ANNOUNCE/SETUP, UDP binding, and
// RECORD. OPTIONS is sent after pairing, never before it. On any failure
// it transitions to Failed and returns the error; the caller decides whether to retry via Reconnect.
func (m *Manager) Connect(ctx context.Context) error {
	m.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	var d net.Dialer
	nc, err := d.DialContext(dialCtx, "tcp", m.cfg.Addr)
	if err != nil {
		m.setState(StateFailed)
		werr := liberrors.Transport("DIAL_FAILED", "connect to receiver", err)
		m.emitError(werr)
		return werr
	}

	m.mu.Lock()
	m.netConn = nc
	m.codec = rtspconn.New()
	m.ctrl = session.NewController(m.cfg.Dialect, m.cfg.URI)
	m.rsess = m.ctrl.Session()
	m.mu.Unlock()

	if err := m.authenticate(ctx); err != nil {
		m.releasePartialConnect()
		m.setState(StateFailed)
		m.emitError(err)
		return err
	}

	if err := m.setup(ctx); err != nil {
		m.releasePartialConnect()
		m.setState(StateFailed)
		m.emitError(err)
		return err
	}

	m.mu.Lock()
	m.stats.ConnectedAt = timeNow()
	m.mu.Unlock()
	m.setState(StateConnected)
	m.bus.publish(Event{Kind: EventConnected})
	return nil
}

// authenticate runs pair-verify against a previously stored identity,
// falling back to transient pair-setup when no identity is stored or
// verification is rejected. A device with no store
// configured and no PIN is connected in the clear (AP1 receivers that
// never pair).
func (m *Manager) authenticate(ctx context.Context) error {
	m.setState(StateAuthenticating)

	var stored *pairing.PersistentKeys
	if m.cfg.PairingStore != nil && m.cfg.DeviceID != "" {
		stored, _ = m.cfg.PairingStore.Load(m.cfg.DeviceID)
	}
	if stored != nil {
		verr := m.pairVerify(ctx, stored)
		if verr == nil {
			return nil
		}
		if !m.cfg.AllowTransientPairing || m.cfg.PIN == "" {
			return verr
		}
	}

	if m.cfg.AllowTransientPairing && m.cfg.PIN != "" {
		return m.pairSetup(ctx)
	}
	if m.cfg.PairingStore != nil && m.cfg.DeviceID != "" {
		m.bus.publish(Event{Kind: EventPairingRequired})
		return liberrors.Security("PAIRING_REQUIRED", "no stored identity for device and transient pairing unavailable", nil)
	}
	return nil
}

// pairVerify proves a stored long-term identity to the receiver and
// installs the resulting session keys on the control channel.
func (m *Manager) pairVerify(ctx context.Context, keys *pairing.PersistentKeys) error {
	vc := pairing.NewVerifyClient(keys)
	step, err := vc.Start()
	if err != nil {
		return liberrors.Security("PAIR_VERIFY_FAILED", "start pair-verify", err)
	}
	for {
		switch step.Kind {
		case pairing.StepComplete:
			m.mu.Lock()
			m.codec.Encrypt(step.SessionKeys)
			m.mu.Unlock()
			return nil
		case pairing.StepFailed:
			return liberrors.Security("PAIR_VERIFY_FAILED", "pair-verify rejected", step.Err)
		case pairing.StepSendData:
			reply, err := m.postPairing(ctx, step.NextPath, step.Data)
			if err != nil {
				return err
			}
			step, err = vc.Step(reply)
			if err != nil {
				return liberrors.Security("PAIR_VERIFY_FAILED", "advance pair-verify", err)
			}
		}
	}
}

// pairSetup runs SRP pair-setup with the configured PIN. With a pairing
// store configured the exchange continues into persistent M5/M6 and the
// resulting identity is saved, so the next Connect can pair-verify
// instead.
func (m *Manager) pairSetup(ctx context.Context) error {
	sc := pairing.NewSetupClient(pairing.DefaultSRPIdentity, []byte(m.cfg.PIN))
	if m.cfg.PairingStore != nil && m.cfg.DeviceID != "" {
		longTerm, err := crypto.GenerateEd25519KeyPair()
		if err != nil {
			return liberrors.Security("KEYGEN_FAILED", "generate long-term identity", err)
		}
		sc = sc.WithLongTermIdentity(longTerm)
	}
	step, err := sc.Start()
	if err != nil {
		return liberrors.Security("PAIR_SETUP_FAILED", "start pair-setup", err)
	}
	for {
		switch step.Kind {
		case pairing.StepComplete:
			if step.Persistent != nil && m.cfg.PairingStore != nil && m.cfg.DeviceID != "" {
				if err := m.cfg.PairingStore.Save(m.cfg.DeviceID, step.Persistent); err != nil {
					return liberrors.Security("KEY_STORE_CORRUPT", "persist pairing identity", err)
				}
			}
			m.mu.Lock()
			m.codec.Encrypt(step.SessionKeys)
			m.mu.Unlock()
			return nil
		case pairing.StepFailed:
			return liberrors.Security("SRP_PROOF_MISMATCH", "pair-setup rejected", step.Err)
		case pairing.StepSendData:
			reply, err := m.postPairing(ctx, step.NextPath, step.Data)
			if err != nil {
				return err
			}
			step, err = sc.Step(reply)
			if err != nil {
				return liberrors.Security("PAIR_SETUP_FAILED", "advance pair-setup", err)
			}
		}
	}
}

// postPairing sends body as an octet-stream POST and returns the
// response content, used for both pair-setup and pair-verify exchanges.
func (m *Manager) postPairing(ctx context.Context, path string, body []byte) ([]byte, error) {
	req := &base.Request{Method: base.Post, URI: m.cfg.URI + path, Header: base.Header{}, Content: body}
	req.Header.Set("Content-Type", "application/octet-stream")
	if err := m.rsess.PrepareRequest(req); err != nil {
		return nil, err
	}
	resp, err := m.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := m.rsess.CompleteRequest(resp); err != nil {
		return nil, err
	}
	return resp.Content, nil
}

// setup runs OPTIONS through RECORD, the dialect-appropriate ANNOUNCE/
// SETUP form, and binds the UDP stream sockets.
func (m *Manager) setup(ctx context.Context) error {
	m.setState(StateSettingUp)

	ssrcBytes, err := crypto.RandomBytes(4)
	if err != nil {
		return liberrors.Security("KEYGEN_FAILED", "generate RTP SSRC", err)
	}
	m.mu.Lock()
	m.ssrc = uint32(ssrcBytes[0])<<24 | uint32(ssrcBytes[1])<<16 | uint32(ssrcBytes[2])<<8 | uint32(ssrcBytes[3])
	m.mu.Unlock()

	if err := m.exchange(ctx, m.ctrl.BuildOptions, func(r *base.Response) error {
		return m.ctrl.HandleOptionsResponse(r)
	}); err != nil {
		return err
	}

	sockets, err := rtp.BindLocal()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.sockets = sockets
	m.mu.Unlock()

	switch m.cfg.Dialect {
	case session.DialectAP1:
		m.clock = timing.NewClockSync(timing.ModeNTP)
		if err := m.setupAP1(ctx); err != nil {
			return err
		}
	case session.DialectAP2:
		m.clock = timing.NewClockSync(timing.ModePTP)
		if err := m.exchange(ctx,
			m.ctrl.BuildSetupPhase1,
			func(r *base.Response) error {
				_, _, err := m.ctrl.HandleSetupPhase1Response(r)
				return err
			}); err != nil {
			return err
		}
		var negotiated []session.StreamDescriptor
		if err := m.exchange(ctx,
			func() (*base.Request, error) { return m.ctrl.BuildSetupPhase2(m.cfg.Streams) },
			func(r *base.Response) error {
				streams, err := m.ctrl.HandleSetupPhase2Response(r)
				negotiated = streams
				return err
			}); err != nil {
			return err
		}
		if len(negotiated) > 0 {
			s := negotiated[0]
			if err := m.sockets.ConnectRemote(m.cfg.Host, s.DataPort, s.ControlPort, 0); err != nil {
				return err
			}
		}
	}

	if err := m.exchange(ctx,
		func() (*base.Request, error) { return m.ctrl.BuildRecord(nil) },
		m.ctrl.HandleRecordResponse); err != nil {
		return err
	}
	return nil
}

// setupAP1 runs the AP1-only ANNOUNCE/SETUP pair: a single SDP
// announcement of the AES-128-CTR audio key/IV, then one SETUP
// negotiating control_port/timing_port/server_port.
func (m *Manager) setupAP1(ctx context.Context) error {
	aesKey, err := crypto.RandomBytes(16)
	if err != nil {
		return liberrors.Security("KEYGEN_FAILED", "generate AP1 audio AES key", err)
	}
	aesIV, err := crypto.RandomBytes(16)
	if err != nil {
		return liberrors.Security("KEYGEN_FAILED", "generate AP1 audio AES IV", err)
	}

	var encryptedKey []byte
	if m.cfg.ReceiverRSAPublicKey != nil {
		encryptedKey, err = crypto.RSAOAEPEncrypt(m.cfg.ReceiverRSAPublicKey, aesKey)
		if err != nil {
			return liberrors.Security("RSA_ENCAPSULATION_FAILED", "encrypt AP1 audio key", err)
		}
	} else {
		encryptedKey = aesKey
	}

	var params session.AnnounceParams
	if len(m.cfg.Streams) > 0 {
		s := m.cfg.Streams[0]
		params = session.AnnounceParams{SampleRate: s.SampleRate, Channels: s.Channels, SampleSize: s.SampleSize}
	}
	params.AESKey = aesKey
	params.AESIV = aesIV

	localAddr, _, _ := net.SplitHostPort(m.netConn.LocalAddr().String())
	sdpBody, err := session.BuildAnnounceSDP(localAddr, params, encryptedKey)
	if err != nil {
		return liberrors.Protocol("SDP_BUILD_FAILED", "build ANNOUNCE body", err)
	}

	if err := m.exchange(ctx,
		func() (*base.Request, error) { return m.ctrl.BuildAnnounce(sdpBody) },
		m.ctrl.HandleAnnounceResponse); err != nil {
		return err
	}

	ap1Cipher, err := rtp.NewAP1Cipher(aesKey, aesIV)
	if err != nil {
		return liberrors.Security("CIPHER_INIT_FAILED", "construct AP1 AES-128-CTR cipher", err)
	}
	m.mu.Lock()
	m.ap1Cipher = ap1Cipher
	m.mu.Unlock()

	_, controlPort, timingPort := m.sockets.LocalPorts()
	var negotiated *session.StreamDescriptor
	if err := m.exchange(ctx,
		func() (*base.Request, error) { return m.ctrl.BuildSetupAP1(controlPort, timingPort) },
		func(r *base.Response) error {
			d, err := m.ctrl.HandleSetupAP1Response(r)
			negotiated = d
			return err
		}); err != nil {
		return err
	}
	if negotiated != nil && negotiated.ServerPort != 0 {
		return m.sockets.ConnectRemote(m.cfg.Host, negotiated.ServerPort, 0, 0)
	}
	return nil
}

// exchange sends the request Build produces and feeds the response to
// Handle, propagating either step's error.
func (m *Manager) exchange(ctx context.Context, build func() (*base.Request, error), handle func(*base.Response) error) error {
	req, err := build()
	if err != nil {
		return err
	}
	resp, err := m.roundTrip(ctx, req)
	if err != nil {
		return err
	}
	return handle(resp)
}

// roundTrip encodes req, writes it to the socket, and blocks until a
// full response has been decoded or ctx is done.
func (m *Manager) roundTrip(ctx context.Context, req *base.Request) (*base.Response, error) {
	m.mu.Lock()
	payload, err := m.codec.Encode(req)
	m.mu.Unlock()
	if err != nil {
		return nil, liberrors.Protocol("ENCODE_FAILED", "encode request", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		m.netConn.SetDeadline(deadline)
	}
	n, err := m.netConn.Write(payload)
	if err != nil {
		m.reportBrokenConnection(err)
		return nil, liberrors.Transport("WRITE_FAILED", "write request", err)
	}
	m.cnt.addSent(n)

	readBuf := make([]byte, defaultReadBufferSize)
	for {
		m.mu.Lock()
		resp, ok, decErr := m.codec.DecodeResponse()
		m.mu.Unlock()
		if decErr != nil {
			return nil, liberrors.Protocol("DECODE_FAILED", "decode response", decErr)
		}
		if ok {
			return resp, nil
		}
		n, err := m.netConn.Read(readBuf)
		if n > 0 {
			m.cnt.addReceived(n)
			m.mu.Lock()
			feedErr := m.codec.Feed(readBuf[:n])
			m.mu.Unlock()
			if feedErr != nil {
				return nil, liberrors.Protocol("DECODE_FAILED", "feed response bytes", feedErr)
			}
		}
		if err != nil {
			m.reportBrokenConnection(err)
			return nil, liberrors.Transport("READ_FAILED", "read response", err)
		}
	}
}

// reportBrokenConnection closes and publishes EventDisconnected when a
// socket error surfaces on a session that was already Connected: such an
// error was never requested by the caller, so it is reported as an
// unsolicited disconnect rather than left to
// propagate only as the exchange's own returned error.
func (m *Manager) reportBrokenConnection(sockErr error) {
	if m.State() != StateConnected {
		return
	}
	reason := ReasonNetworkError
	if errors.Is(sockErr, io.EOF) {
		reason = ReasonDeviceOffline
	}
	m.closeWithReason(reason)
}

// releasePartialConnect closes and forgets whatever Connect had already
// opened by the time authenticate or setup failed: the dialed TCP socket
// and, once SETUP has started, the bound UDP stream sockets. Without this a
// failed Connect (and every Reconnect retry that calls it in a loop) would
// leak one TCP socket and up to two UDP sockets per attempt.
func (m *Manager) releasePartialConnect() {
	m.mu.Lock()
	nc := m.netConn
	sockets := m.sockets
	m.netConn = nil
	m.sockets = nil
	m.codec = nil
	m.rsess = nil
	m.ctrl = nil
	m.mu.Unlock()

	if sockets != nil {
		sockets.Close()
	}
	if nc != nil {
		nc.Close()
	}
}

// Close tears down the session (best effort) and releases all resources,
// reporting the disconnect as user-requested.
func (m *Manager) Close() error {
	return m.closeWithReason(ReasonUserRequested)
}

// closeWithReason releases all session resources and publishes
// EventDisconnected tagged with reason A TEARDOWN is only
// attempted for a user-requested close; a connection already known broken
// has nothing left to TEARDOWN over.
func (m *Manager) closeWithReason(reason DisconnectReason) error {
	m.mu.Lock()
	ctrl := m.ctrl
	nc := m.netConn
	sockets := m.sockets
	m.mu.Unlock()

	if reason == ReasonUserRequested && ctrl != nil && nc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.exchange(ctx, ctrl.BuildTeardown, ctrl.HandleTeardownResponse)
	}
	if sockets != nil {
		sockets.Close()
	}
	if nc != nil {
		nc.Close()
	}
	m.setState(StateDisconnected)
	m.bus.publish(Event{Kind: EventDisconnected, Reason: reason})
	m.bus.closeAll()
	return nil
}

// Reconnect retries Connect with backoff while the last error remains
// recoverable per liberrors.Kind.Recoverable().
func (m *Manager) Reconnect(ctx context.Context, backoff time.Duration, maxAttempts int) error {
	m.setState(StateReconnecting)
	var lastErr error
	for attempt := 1; maxAttempts == 0 || attempt <= maxAttempts; attempt++ {
		m.mu.Lock()
		m.stats.ReconnectAttempts++
		m.mu.Unlock()

		lastErr = m.Connect(ctx)
		if lastErr == nil {
			return nil
		}
		var lerr *liberrors.Error
		if !asLibError(lastErr, &lerr) || !lerr.Recoverable() {
			m.setState(StateFailed)
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

func asLibError(err error, target **liberrors.Error) bool {
	for err != nil {
		if le, ok := err.(*liberrors.Error); ok {
			*target = le
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// timeNow isolates the only wall-clock read in this package so tests can
// see it.
func timeNow() time.Time { return time.Now() }
