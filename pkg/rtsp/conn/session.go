package conn

import (
	"sync"

	"github.com/openairplay/airplay/internal/liberrors"
	"github.com/openairplay/airplay/pkg/rtsp/base"
)

// Session tracks the per-connection RTSP bookkeeping:
// a monotone CSeq counter, the Session-ID assigned by the first successful
// SETUP, and the single in-flight request (pipelining is disallowed).
type Session struct {
	mu sync.Mutex

	cseq      int
	sessionID string
	inFlight  *base.Request
}

// NewSession returns a fresh Session with CSeq starting at 0.
func NewSession() *Session {
	return &Session{}
}

// PrepareRequest stamps req with the next CSeq and records it as the sole
// in-flight request, enforcing the at-most-one-in-flight ordering
// guarantee.
func (s *Session) PrepareRequest(req *base.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight != nil {
		return liberrors.Session("SESSION_BUSY", "a request is already in flight", nil)
	}
	s.cseq++
	req.CSeq = s.cseq
	if s.sessionID != "" {
		req.Header.Set("Session", s.sessionID)
	}
	s.inFlight = req
	return nil
}

// CompleteRequest correlates resp to the in-flight request by CSeq and
// clears it, adopting any Session-ID the response assigns.
func (s *Session) CompleteRequest(resp *base.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight == nil {
		return liberrors.Session("UNEXPECTED_RESPONSE", "no request in flight", nil)
	}
	if resp.CSeq != s.inFlight.CSeq {
		return liberrors.Protocol("CSEQ_MISMATCH", "response CSeq does not match in-flight request", nil)
	}
	s.inFlight = nil
	if sid, ok := resp.Header.Get("Session"); ok && sid != "" {
		s.sessionID = sid
	}
	return nil
}

// CSeq returns the most recently assigned CSeq value.
func (s *Session) CSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cseq
}

// SessionID returns the Session header value assigned by SETUP, if any.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}
