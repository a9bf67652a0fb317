package session

import (
	"fmt"

	"github.com/openairplay/airplay/internal/liberrors"
	"github.com/openairplay/airplay/pkg/rtsp/base"
	"github.com/openairplay/airplay/pkg/rtsp/conn"
	"github.com/openairplay/airplay/pkg/rtsp/headers"
)

// Dialect selects which AirPlay protocol dialect the controller drives.
type Dialect int

const (
	DialectAP1 Dialect = iota
	DialectAP2
)

// Controller drives the controller-side RTSP method sequence: each
// Build* method produces the next request to send, and the matching
// Handle* method validates the response and advances State. It is
// sans-I/O: callers own the transport and the pkg/rtsp/conn.Codec
// framing/encryption.
type Controller struct {
	dialect Dialect
	uri     string
	rsess   *conn.Session

	State State

	PublicMethods []string
	Streams       []StreamDescriptor
}

// NewController creates a Controller for the given dialect and request
// URI (the RTSP URL of the target device).
func NewController(dialect Dialect, uri string) *Controller {
	return &Controller{dialect: dialect, uri: uri, rsess: conn.NewSession(), State: StateInit}
}

// Session exposes the CSeq/Session-ID bookkeeping so a caller that sends
// its own requests on the same connection (pairing POSTs) keeps the wire
// CSeq strictly increasing.
func (c *Controller) Session() *conn.Session {
	return c.rsess
}

func (c *Controller) newRequest(method base.Method) *base.Request {
	return &base.Request{Method: method, URI: c.uri, Header: base.Header{}}
}

func (c *Controller) prepare(req *base.Request) error {
	return c.rsess.PrepareRequest(req)
}

func (c *Controller) complete(resp *base.Response, wantStatus int) error {
	if err := c.rsess.CompleteRequest(resp); err != nil {
		return err
	}
	if resp.StatusCode != wantStatus {
		return liberrors.Protocol("UNEXPECTED_STATUS",
			fmt.Sprintf("expected status %d, got %d", wantStatus, resp.StatusCode), nil)
	}
	return nil
}

// BuildOptions builds the OPTIONS capability-discovery request.
func (c *Controller) BuildOptions() (*base.Request, error) {
	if err := checkState(c.State, StateInit); err != nil {
		return nil, err
	}
	req := c.newRequest(base.Options)
	if err := c.prepare(req); err != nil {
		return nil, err
	}
	return req, nil
}

// HandleOptionsResponse records the Public header's method list and
// advances to OptionsExchanged.
func (c *Controller) HandleOptionsResponse(resp *base.Response) error {
	if err := c.complete(resp, 200); err != nil {
		return err
	}
	if pub, ok := resp.Header.Get("Public"); ok {
		c.PublicMethods = splitCommaList(pub)
	}
	c.State = StateOptionsExchanged
	return nil
}

// BuildAnnounce builds the AP1 ANNOUNCE request carrying the SDP body.
// Valid only for the AP1 dialect.
func (c *Controller) BuildAnnounce(sdpBody []byte) (*base.Request, error) {
	if c.dialect != DialectAP1 {
		return nil, liberrors.Session("WRONG_DIALECT", "ANNOUNCE is AP1-only", nil)
	}
	if err := checkState(c.State, StateOptionsExchanged); err != nil {
		return nil, err
	}
	req := c.newRequest(base.Announce)
	req.Header.Set("Content-Type", "application/sdp")
	req.Content = sdpBody
	if err := c.prepare(req); err != nil {
		return nil, err
	}
	return req, nil
}

// HandleAnnounceResponse advances to Announced.
func (c *Controller) HandleAnnounceResponse(resp *base.Response) error {
	if err := c.complete(resp, 200); err != nil {
		return err
	}
	c.State = StateAnnounced
	return nil
}

// BuildSetupAP1 builds the single AP1 SETUP call requesting control_port
// and timing_port.
func (c *Controller) BuildSetupAP1(controlPort, timingPort int) (*base.Request, error) {
	if c.dialect != DialectAP1 {
		return nil, liberrors.Session("WRONG_DIALECT", "this SETUP form is AP1-only", nil)
	}
	if err := checkState(c.State, StateAnnounced); err != nil {
		return nil, err
	}
	tr := &headers.Transport{
		Protocol:    "RTP/AVP/UDP",
		Unicast:     true,
		ControlPort: &[2]int{controlPort, controlPort},
		TimingPort:  &[2]int{timingPort, timingPort},
	}
	req := c.newRequest(base.Setup)
	req.Header.Set("Transport", tr.String())
	if err := c.prepare(req); err != nil {
		return nil, err
	}
	return req, nil
}

// HandleSetupAP1Response parses the negotiated server_port and advances
// to StreamsEstablished.
func (c *Controller) HandleSetupAP1Response(resp *base.Response) (*StreamDescriptor, error) {
	if err := c.complete(resp, 200); err != nil {
		return nil, err
	}
	v, ok := resp.Header.Get("Transport")
	if !ok {
		return nil, liberrors.Protocol("BAD_TRANSPORT_HEADER", "SETUP response missing Transport", nil)
	}
	tr, err := headers.Parse(v)
	if err != nil {
		return nil, liberrors.Protocol("BAD_TRANSPORT_HEADER", err.Error(), err)
	}
	d := &StreamDescriptor{Type: StreamTypeAudio}
	if tr.ServerPort != nil {
		d.ServerPort = tr.ServerPort[0]
	}
	c.Streams = append(c.Streams, *d)
	c.State = StateStreamsEstablished
	return d, nil
}

// BuildSetupPhase1 builds the AP2 SETUP phase 1 request (timing + event
// streams).
func (c *Controller) BuildSetupPhase1() (*base.Request, error) {
	if c.dialect != DialectAP2 {
		return nil, liberrors.Session("WRONG_DIALECT", "this SETUP form is AP2-only", nil)
	}
	if err := checkState(c.State, StateOptionsExchanged); err != nil {
		return nil, err
	}
	body, err := BuildSetupPhase1()
	if err != nil {
		return nil, err
	}
	req := c.newRequest(base.Setup)
	req.Header.Set("Content-Type", "application/x-apple-binary-plist")
	req.Content = body
	if err := c.prepare(req); err != nil {
		return nil, err
	}
	return req, nil
}

// HandleSetupPhase1Response parses the event/timing ports and advances to
// TimingEstablished.
func (c *Controller) HandleSetupPhase1Response(resp *base.Response) (eventPort, timingPort int, err error) {
	if err := c.complete(resp, 200); err != nil {
		return 0, 0, err
	}
	eventPort, timingPort, err = ParseSetupPhase1Response(resp.Content)
	if err != nil {
		return 0, 0, liberrors.Protocol("MALFORMED_PLIST", err.Error(), err)
	}
	c.State = StateTimingEstablished
	return eventPort, timingPort, nil
}

// BuildSetupPhase2 builds the AP2 SETUP phase 2 request for one or more
// audio streams.
func (c *Controller) BuildSetupPhase2(streams []StreamDescriptor) (*base.Request, error) {
	if c.dialect != DialectAP2 {
		return nil, liberrors.Session("WRONG_DIALECT", "this SETUP form is AP2-only", nil)
	}
	if err := checkState(c.State, StateTimingEstablished); err != nil {
		return nil, err
	}
	body, err := BuildSetupPhase2(streams)
	if err != nil {
		return nil, err
	}
	req := c.newRequest(base.Setup)
	req.Header.Set("Content-Type", "application/x-apple-binary-plist")
	req.Content = body
	if err := c.prepare(req); err != nil {
		return nil, err
	}
	return req, nil
}

// HandleSetupPhase2Response parses the negotiated data/control ports and
// advances to StreamsEstablished.
func (c *Controller) HandleSetupPhase2Response(resp *base.Response) ([]StreamDescriptor, error) {
	if err := c.complete(resp, 200); err != nil {
		return nil, err
	}
	streams, err := ParseSetupPhase2Response(resp.Content)
	if err != nil {
		return nil, liberrors.Protocol("MALFORMED_PLIST", err.Error(), err)
	}
	c.Streams = append(c.Streams, streams...)
	c.State = StateStreamsEstablished
	return streams, nil
}

// BuildRecord builds the RECORD request, optionally anchoring playback at
// an RTP timestamp via the Range header.
func (c *Controller) BuildRecord(rtpTimestamp *uint32) (*base.Request, error) {
	if err := checkState(c.State, StateStreamsEstablished); err != nil {
		return nil, err
	}
	req := c.newRequest(base.Record)
	if rtpTimestamp != nil {
		req.Header.Set("Range", headers.Range{RTPTimestamp: *rtpTimestamp, Present: true}.String())
		req.Header.Set("RTP-Info", fmt.Sprintf("seq=0;rtptime=%d", *rtpTimestamp))
	}
	if err := c.prepare(req); err != nil {
		return nil, err
	}
	return req, nil
}

// HandleRecordResponse advances to Recording.
func (c *Controller) HandleRecordResponse(resp *base.Response) error {
	if err := c.complete(resp, 200); err != nil {
		return err
	}
	c.State = StateRecording
	return nil
}

// BuildSetParameter builds a SET_PARAMETER request carrying a
// content-type/body pair (volume, progress, or metadata).
func (c *Controller) BuildSetParameter(contentType string, body []byte) (*base.Request, error) {
	if err := checkState(c.State, StateRecording); err != nil {
		return nil, err
	}
	req := c.newRequest(base.SetParameter)
	req.Header.Set("Content-Type", contentType)
	req.Content = body
	if err := c.prepare(req); err != nil {
		return nil, err
	}
	return req, nil
}

// HandleSetParameterResponse validates the SET_PARAMETER response without
// changing state.
func (c *Controller) HandleSetParameterResponse(resp *base.Response) error {
	return c.complete(resp, 200)
}

// BuildGetParameter builds a GET_PARAMETER keep-alive request.
func (c *Controller) BuildGetParameter() (*base.Request, error) {
	req := c.newRequest(base.GetParameter)
	if err := c.prepare(req); err != nil {
		return nil, err
	}
	return req, nil
}

// HandleGetParameterResponse validates the keep-alive response.
func (c *Controller) HandleGetParameterResponse(resp *base.Response) error {
	return c.complete(resp, 200)
}

// ErrFlushBeforeSync is returned by BuildFlush when no sync packet has
// been received yet.
//
// Open question: FLUSH semantics before the first
// sync packet are unspecified. This module implements the conservative
// policy: reject, rather than buffer-and-retry.
var ErrFlushBeforeSync = liberrors.Session("FLUSH_BEFORE_SYNC", "cannot FLUSH before the first sync packet establishes a reference clock", nil)

// BuildFlush builds a FLUSH request discarding buffered audio before the
// given RTP sequence/timestamp. haveSyncReference must be true (see
// ErrFlushBeforeSync).
func (c *Controller) BuildFlush(rtpTimestamp uint32, haveSyncReference bool) (*base.Request, error) {
	if !haveSyncReference {
		return nil, ErrFlushBeforeSync
	}
	if err := checkState(c.State, StateRecording); err != nil {
		return nil, err
	}
	req := c.newRequest(base.Flush)
	req.Header.Set("RTP-Info", fmt.Sprintf("seq=0;rtptime=%d", rtpTimestamp))
	if err := c.prepare(req); err != nil {
		return nil, err
	}
	c.State = StateFlushing
	return req, nil
}

// HandleFlushResponse returns to Recording after a successful FLUSH.
func (c *Controller) HandleFlushResponse(resp *base.Response) error {
	if err := c.complete(resp, 200); err != nil {
		return err
	}
	c.State = StateRecording
	return nil
}

// BuildTeardown builds the TEARDOWN request ending the session.
func (c *Controller) BuildTeardown() (*base.Request, error) {
	req := c.newRequest(base.Teardown)
	if err := c.prepare(req); err != nil {
		return nil, err
	}
	return req, nil
}

// HandleTeardownResponse advances to TornDown regardless of status, since
// TEARDOWN is sent best-effort during disconnect.
func (c *Controller) HandleTeardownResponse(resp *base.Response) error {
	_ = c.rsess.CompleteRequest(resp)
	c.State = StateTornDown
	return nil
}

func splitCommaList(v string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			item := trimSpace(v[start:i])
			if item != "" {
				out = append(out, item)
			}
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}
