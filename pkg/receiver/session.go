package receiver

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openairplay/airplay/internal/liberrors"
	"github.com/openairplay/airplay/pkg/crypto"
	"github.com/openairplay/airplay/pkg/rtp"
	"github.com/openairplay/airplay/pkg/rtsp/base"
	rtspconn "github.com/openairplay/airplay/pkg/rtsp/conn"
	"github.com/openairplay/airplay/pkg/rtsp/headers"
	"github.com/openairplay/airplay/pkg/session"
)

const plistContentType = "application/x-apple-binary-plist"

// SessionConfig supplies a Session with the identity it authenticates
// connecting controllers against and a factory for the audio sink each
// negotiated stream writes decoded PCM to.
type SessionConfig struct {
	Identity       *Identity
	NewAudioOutput func(sampleRate, channels int) (AudioOutput, error)

	// Optional callbacks surfacing controller SET_PARAMETER updates.
	// Each is invoked on the session's read loop; a nil callback drops
	// the update after validation.
	OnVolume   func(db float64)
	OnProgress func(p session.Progress)
	OnMetadata func(m session.Metadata)
}

// Session handles one accepted controller connection end to end: pairing,
// the RTSP method sequence, UDP port allocation, and RTP playback.
type Session struct {
	cfg  SessionConfig
	conn net.Conn

	mu        sync.Mutex
	codec     *rtspconn.Codec
	pairing   *pairingRouter
	sessionID string
	state     State

	// pendingKeys holds session keys derived while handling a pairing
	// POST; they are installed only after that request's response has
	// been written, since the peer reads the final pairing reply in
	// plaintext and encrypts from the next message on.
	pendingKeys *crypto.SessionKeys

	sockets   *rtp.StreamSockets
	streams   []session.StreamDescriptor
	receivers []*StreamReceiver

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession wraps an accepted net.Conn in a Session ready to Serve.
func NewSession(conn net.Conn, cfg SessionConfig) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:     cfg,
		conn:    conn,
		codec:   rtspconn.New(),
		pairing: newPairingRouter(cfg.Identity),
		state:   StateIdle,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Serve reads requests until the connection closes or TEARDOWN completes.
func (s *Session) Serve() error {
	defer s.cleanup()

	readBuf := make([]byte, 4096)
	for {
		req, ok, err := s.codec.DecodeRequest()
		if err != nil {
			return err
		}
		if !ok {
			n, err := s.conn.Read(readBuf)
			if n > 0 {
				if feedErr := s.codec.Feed(readBuf[:n]); feedErr != nil {
					return feedErr
				}
			}
			if err != nil {
				return err
			}
			continue
		}

		resp := s.handle(req)
		payload, err := s.codec.EncodeResponse(resp)
		if err != nil {
			return err
		}
		if _, err := s.conn.Write(payload); err != nil {
			return err
		}
		if s.pendingKeys != nil {
			s.codec.Encrypt(s.pendingKeys)
			s.pendingKeys = nil
		}
		if req.Method == base.Teardown {
			return nil
		}
	}
}

func (s *Session) cleanup() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.receivers {
		r.out.Close()
	}
	if s.sockets != nil {
		s.sockets.Close()
	}
	s.conn.Close()
}

func (s *Session) handle(req *base.Request) *base.Response {
	resp := &base.Response{CSeq: req.CSeq, Header: base.Header{}, StatusCode: 200, StatusMsg: base.StatusText(200)}
	if s.sessionID != "" {
		resp.Header.Set("Session", s.sessionID)
	}

	var err error
	switch req.Method {
	case base.Post:
		err = s.handlePost(req, resp)
	case base.Options:
		err = s.handleOptions(resp)
	case base.Announce:
		err = s.handleAnnounce(req, resp)
	case base.Setup:
		err = s.handleSetup(req, resp)
	case base.Record:
		err = s.handleRecord(resp)
	case base.SetParameter:
		err = s.handleSetParameter(req)
	case base.GetParameter:
		// no-op keep-alive.
	case base.Flush:
		err = s.handleFlush(resp)
	case base.Teardown:
		s.state = StateTornDown
	default:
		resp.StatusCode = 501
		resp.StatusMsg = base.StatusText(501)
		return resp
	}

	if err != nil {
		resp.StatusCode, resp.StatusMsg = statusForError(err)
	}
	return resp
}

func statusForError(err error) (int, string) {
	if le, ok := err.(*liberrors.Error); ok {
		switch le.Kind {
		case liberrors.KindSecurity:
			return 401, base.StatusText(401)
		case liberrors.KindSession:
			return 454, base.StatusText(454)
		}
	}
	return 400, base.StatusText(400)
}

func (s *Session) handlePost(req *base.Request, resp *base.Response) error {
	var path string
	switch {
	case strings.HasSuffix(req.URI, pathPairSetup):
		path = pathPairSetup
	case strings.HasSuffix(req.URI, pathPairVerify):
		path = pathPairVerify
	default:
		return liberrors.Protocol("UNKNOWN_PAIRING_PATH", "unrecognized POST target "+req.URI, nil)
	}
	body, keys, err := s.pairing.Handle(path, req.Content)
	if err != nil && body == nil {
		return err
	}
	if keys != nil {
		s.pendingKeys = keys
	}
	// A failed exchange may still carry an error TLV the peer expects
	// (pair-setup's M4 authentication-failure reply); it travels in a
	// 200 like any other pairing body.
	resp.Header.Set("Content-Type", "application/octet-stream")
	resp.Content = body
	return nil
}

func (s *Session) handleOptions(resp *base.Response) error {
	resp.Header.Set("Public", "ANNOUNCE, SETUP, RECORD, PAUSE, FLUSH, TEARDOWN, OPTIONS, GET_PARAMETER, SET_PARAMETER, POST, GET")
	s.state = StateOptionsHandled
	if s.sessionID == "" {
		s.sessionID = uuid.NewString()
	}
	return nil
}

func (s *Session) handleAnnounce(req *base.Request, resp *base.Response) error {
	if err := checkState(s.state, StateOptionsHandled); err != nil {
		return err
	}
	_, _, _, err := session.ParseAnnounceSDP(req.Content)
	if err != nil {
		return liberrors.Protocol("BAD_SDP", "parse ANNOUNCE body", err)
	}
	s.state = StateAnnounced
	return nil
}

func (s *Session) handleSetup(req *base.Request, resp *base.Response) error {
	if s.sockets == nil {
		sockets, err := rtp.BindLocal()
		if err != nil {
			return err
		}
		s.sockets = sockets
	}

	if ct, ok := req.Header.Get("Content-Type"); ok && ct == plistContentType {
		return s.handleSetupAP2(req, resp)
	}
	return s.handleSetupAP1(req, resp)
}

func (s *Session) handleSetupAP1(req *base.Request, resp *base.Response) error {
	if err := checkState(s.state, StateAnnounced); err != nil {
		return err
	}
	if v, ok := req.Header.Get("Transport"); ok {
		if _, err := headers.Parse(v); err != nil {
			return liberrors.Protocol("BAD_TRANSPORT_HEADER", err.Error(), err)
		}
	}
	dataPort, controlPort, timingPort := s.sockets.LocalPorts()
	tr := &headers.Transport{
		Protocol:    "RTP/AVP/UDP",
		Unicast:     true,
		ServerPort:  &[2]int{dataPort, dataPort},
		ControlPort: &[2]int{controlPort, controlPort},
		TimingPort:  &[2]int{timingPort, timingPort},
	}
	resp.Header.Set("Transport", tr.String())
	s.streams = []session.StreamDescriptor{{Type: session.StreamTypeAudio, DataPort: dataPort, ControlPort: controlPort}}
	s.state = StateSetUp
	return nil
}

func (s *Session) handleSetupAP2(req *base.Request, resp *base.Response) error {
	resp.Header.Set("Content-Type", plistContentType)

	// Phase 1 carries a timingProtocol key and no streams; phase 2 carries
	// streams. Both may arrive while the session is still Announced.
	timingProtocol, err := session.ParseSetupPhase1Request(req.Content)
	if err != nil {
		return liberrors.Protocol("MALFORMED_PLIST", err.Error(), err)
	}
	if timingProtocol != "" && (s.state == StateOptionsHandled || s.state == StateAnnounced) {
		_, controlPort, timingPort := s.sockets.LocalPorts()
		body, err := session.BuildSetupPhase1Response(controlPort, timingPort)
		if err != nil {
			return err
		}
		resp.Content = body
		s.state = StateAnnounced
		return nil
	}

	streams, err := session.ParseSetupPhase2Request(req.Content)
	if err != nil {
		return liberrors.Protocol("MALFORMED_PLIST", err.Error(), err)
	}
	dataPort, controlPort, _ := s.sockets.LocalPorts()
	for i := range streams {
		streams[i].DataPort = dataPort
		streams[i].ControlPort = controlPort
	}
	body, err := session.BuildSetupPhase2Response(streams)
	if err != nil {
		return err
	}
	resp.Content = body
	s.streams = streams
	s.state = StateSetUp
	return nil
}

func (s *Session) handleRecord(resp *base.Response) error {
	if err := checkState(s.state, StateSetUp); err != nil {
		return err
	}
	for _, st := range s.streams {
		out, err := s.cfg.NewAudioOutput(st.SampleRate, st.Channels)
		if err != nil {
			return liberrors.Configuration("AUDIO_SINK_FAILED", "open audio output", err)
		}
		var shk *[32]byte
		if st.SharedKey != ([32]byte{}) {
			k := st.SharedKey
			shk = &k
		}
		channels := st.Channels
		if channels == 0 {
			channels = 2
		}
		sampleRate := st.SampleRate
		if sampleRate == 0 {
			sampleRate = 44100
		}
		r := NewStreamReceiver(s.sockets.Data, out, channels, sampleRate, shk)
		s.receivers = append(s.receivers, r)
		go r.Run(s.ctx)
		go s.drainLoop(r, sampleRate)
	}
	s.state = StateRecording
	return nil
}

// drainLoop periodically pulls one frame's worth of decoded audio out of
// r and writes it to its AudioOutput, paced to the stream's sample rate.
func (s *Session) drainLoop(r *StreamReceiver, sampleRate int) {
	interval := time.Duration(r.frameSamples) * time.Second / time.Duration(sampleRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			r.Drain()
		}
	}
}

// handleSetParameter validates a controller SET_PARAMETER body and routes
// it to the matching SessionConfig callback: `volume:` and `progress:`
// text bodies, or a binary-plist metadata body.
func (s *Session) handleSetParameter(req *base.Request) error {
	if err := checkState(s.state, StateRecording); err != nil {
		return err
	}
	ct, _ := req.Header.Get("Content-Type")
	if ct == plistContentType {
		m, err := session.ParseMetadataBody(req.Content)
		if err != nil {
			return liberrors.Protocol("MALFORMED_PLIST", err.Error(), err)
		}
		if s.cfg.OnMetadata != nil {
			s.cfg.OnMetadata(m)
		}
		return nil
	}
	body := string(req.Content)
	switch {
	case strings.HasPrefix(body, "volume:"):
		db, err := session.ParseVolumeParameter(req.Content)
		if err != nil {
			return liberrors.Protocol("BAD_PARAMETER", err.Error(), err)
		}
		if s.cfg.OnVolume != nil {
			s.cfg.OnVolume(db)
		}
	case strings.HasPrefix(body, "progress:"):
		p, err := session.ParseProgressParameter(req.Content)
		if err != nil {
			return liberrors.Protocol("BAD_PARAMETER", err.Error(), err)
		}
		if s.cfg.OnProgress != nil {
			s.cfg.OnProgress(p)
		}
	}
	return nil
}

func (s *Session) handleFlush(resp *base.Response) error {
	if err := checkState(s.state, StateRecording); err != nil {
		return err
	}
	for _, r := range s.receivers {
		r.buf.Flush()
	}
	return nil
}
