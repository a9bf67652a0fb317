package connection

import (
	"context"

	"github.com/openairplay/airplay/internal/liberrors"
	"github.com/openairplay/airplay/pkg/rtp"
	"github.com/openairplay/airplay/pkg/rtsp/base"
	"github.com/openairplay/airplay/pkg/session"
)

// Disconnect is the control-API name for Close: best-effort
// TEARDOWN followed by resource release.
func (m *Manager) Disconnect() error {
	return m.Close()
}

// Record sends a RECORD request, optionally anchoring playback at an RTP
// timestamp. Connect already issues the initial
// RECORD as part of its setup sequence; this lets a caller re-anchor
// playback (e.g. after a seek) without tearing the session down.
func (m *Manager) Record(ctx context.Context, rtpTimestamp *uint32) error {
	m.mu.Lock()
	ctrl := m.ctrl
	m.mu.Unlock()
	if ctrl == nil {
		return liberrors.Session("SESSION_GONE", "Record called before Connect", nil)
	}
	return m.exchange(ctx,
		func() (*base.Request, error) { return ctrl.BuildRecord(rtpTimestamp) },
		ctrl.HandleRecordResponse)
}

// SetVolume sends the signed-dB volume (-144.0..0.0) via SET_PARAMETER.
func (m *Manager) SetVolume(ctx context.Context, db float64) error {
	body := []byte(session.FormatVolumeParameter(db))
	return m.setParameter(ctx, "text/parameters", body)
}

// SetProgress sends the RTP sample triple (start, current, end) via
// SET_PARAMETER.
func (m *Manager) SetProgress(ctx context.Context, p session.Progress) error {
	body := []byte(session.FormatProgressParameter(p))
	return m.setParameter(ctx, "text/parameters", body)
}

// SetMetadata sends track metadata via SET_PARAMETER, encoded as a
// binary plist body (the AP2 form; AirPlay 1 receivers accept DMAP-tagged
// bodies for AP1, out of scope here since this module targets PCM/ALAC
// streaming rather than full AP1 metadata compatibility).
func (m *Manager) SetMetadata(ctx context.Context, meta session.Metadata) error {
	body, err := session.BuildPlayBody("", 0, &meta)
	if err != nil {
		return liberrors.Protocol("ENCODE_FAILED", "encode metadata body", err)
	}
	return m.setParameter(ctx, "application/x-apple-binary-plist", body)
}

func (m *Manager) setParameter(ctx context.Context, contentType string, body []byte) error {
	m.mu.Lock()
	ctrl := m.ctrl
	m.mu.Unlock()
	if ctrl == nil {
		return liberrors.Session("SESSION_GONE", "SET_PARAMETER called before Connect", nil)
	}
	return m.exchange(ctx,
		func() (*base.Request, error) { return ctrl.BuildSetParameter(contentType, body) },
		ctrl.HandleSetParameterResponse)
}

// Flush discards buffered audio before beforeTS. A sync packet must
// have been observed first (ErrFlushBeforeSync
// otherwise), per the conservative policy documented in
// pkg/session.ErrFlushBeforeSync.
func (m *Manager) Flush(ctx context.Context, beforeTS uint32) error {
	m.mu.Lock()
	ctrl := m.ctrl
	clock := m.clock
	m.mu.Unlock()
	if ctrl == nil {
		return liberrors.Session("SESSION_GONE", "Flush called before Connect", nil)
	}
	haveSync := false
	if clock != nil {
		_, haveSync = clock.Offset()
	}
	return m.exchange(ctx,
		func() (*base.Request, error) { return ctrl.BuildFlush(beforeTS, haveSync) },
		ctrl.HandleFlushResponse)
}

// SendAudioFrame seals and transmits one opaque audio payload over the
// data UDP socket, sequencing and timestamping it. The payload is
// already encoded by the caller's codec (PCM/ALAC/AAC); the
// core moves opaque frames only.
func (m *Manager) SendAudioFrame(timestamp uint32, payload []byte) error {
	m.mu.Lock()
	sockets := m.sockets
	dialect := m.cfg.Dialect
	seq := m.nextSeqLocked()
	ssrc := m.ssrc
	ap1 := m.ap1Cipher
	var shk [32]byte
	if len(m.cfg.Streams) > 0 {
		shk = m.cfg.Streams[0].SharedKey
	}
	m.mu.Unlock()

	if sockets == nil || sockets.Data == nil {
		return liberrors.Session("SESSION_GONE", "SendAudioFrame called before SETUP bound the data socket", nil)
	}

	var sealed []byte
	var err error
	switch dialect {
	case session.DialectAP2:
		sealed, err = rtp.SealAP2(shk, seq, timestamp, payload)
	default:
		if ap1 == nil {
			return liberrors.Session("SESSION_GONE", "SendAudioFrame called before AP1 ANNOUNCE established the audio key", nil)
		}
		sealed = ap1.Process(payload)
	}
	if err != nil {
		return liberrors.Security("AEAD_SEAL_FAILED", "seal audio payload", err)
	}

	pkt := rtp.NewAudioPacket(seq, timestamp, ssrc, sealed)
	wire, err := pkt.Marshal()
	if err != nil {
		return liberrors.Protocol("ENCODE_FAILED", "marshal audio RTP packet", err)
	}
	n, err := sockets.Data.Write(wire)
	if err != nil {
		return liberrors.Transport("WRITE_FAILED", "write audio RTP packet", err)
	}
	m.cnt.addSent(n)
	return nil
}

// nextSeqLocked returns the next RTP sequence number. Callers must hold m.mu.
func (m *Manager) nextSeqLocked() uint16 {
	s := m.seq
	m.seq++
	return s
}
