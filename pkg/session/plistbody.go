package session

import (
	"fmt"

	"github.com/openairplay/airplay/pkg/plist"
)

// BuildSetupPhase1 encodes the AP2 SETUP phase 1 request body: a timing
// stream (type=150) plus an event stream request, establishing the PTP
// clock and the encrypted event channel.
func BuildSetupPhase1() ([]byte, error) {
	v := plist.Dict(
		plist.Entry("timingProtocol", plist.String("PTP")),
		plist.Entry("streams", plist.Array(
			plist.Dict(
				plist.Entry("type", plist.Int(int64(StreamTypeTiming))),
			),
		)),
	)
	return plist.Encode(v)
}

// ParseSetupPhase1Response extracts the event port and timing port from a
// SETUP phase 1 response body.
func ParseSetupPhase1Response(body []byte) (eventPort, timingPort int, err error) {
	v, err := plist.Decode(body)
	if err != nil {
		return 0, 0, fmt.Errorf("session: decode SETUP phase 1 response: %w", err)
	}
	if ep := v.Get("eventPort"); ep != nil {
		eventPort = int(ep.Int)
	}
	if tp := v.Get("timingPort"); tp != nil {
		timingPort = int(tp.Int)
	}
	return eventPort, timingPort, nil
}

// ParseSetupPhase1Request extracts the requested timing protocol from an
// incoming AP2 SETUP phase 1 request body, used by the accessory side.
func ParseSetupPhase1Request(body []byte) (timingProtocol string, err error) {
	v, err := plist.Decode(body)
	if err != nil {
		return "", fmt.Errorf("session: decode SETUP phase 1 request: %w", err)
	}
	if tp := v.Get("timingProtocol"); tp != nil {
		timingProtocol = tp.String
	}
	return timingProtocol, nil
}

// BuildSetupPhase1Response encodes the accessory's AP2 SETUP phase 1
// reply, naming the event and timing ports it bound.
func BuildSetupPhase1Response(eventPort, timingPort int) ([]byte, error) {
	v := plist.Dict(
		plist.Entry("eventPort", plist.Int(int64(eventPort))),
		plist.Entry("timingPort", plist.Int(int64(timingPort))),
	)
	return plist.Encode(v)
}

// ParseSetupPhase2Request decodes the controller's AP2 SETUP phase 2
// request body into stream descriptors, used by the accessory side.
func ParseSetupPhase2Request(body []byte) ([]StreamDescriptor, error) {
	v, err := plist.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("session: decode SETUP phase 2 request: %w", err)
	}
	streamsVal := v.Get("streams")
	if streamsVal == nil {
		return nil, fmt.Errorf("session: SETUP phase 2 request missing streams")
	}
	out := make([]StreamDescriptor, 0, len(streamsVal.Array))
	for _, sv := range streamsVal.Array {
		var d StreamDescriptor
		d.Type = StreamTypeAudio
		if ct := sv.Get("ct"); ct != nil {
			d.Codec = Codec(ct.Int)
		}
		if sr := sv.Get("sr"); sr != nil {
			d.SampleRate = int(sr.Int)
		}
		if ch := sv.Get("ch"); ch != nil {
			d.Channels = int(ch.Int)
		}
		if ss := sv.Get("ss"); ss != nil {
			d.SampleSize = int(ss.Int)
		}
		if shk := sv.Get("shk"); shk != nil {
			copy(d.SharedKey[:], shk.Data)
		}
		out = append(out, d)
	}
	return out, nil
}

// BuildSetupPhase2Response encodes the accessory's AP2 SETUP phase 2
// reply, naming the data/control ports bound for each stream.
func BuildSetupPhase2Response(streams []StreamDescriptor) ([]byte, error) {
	entries := make([]*plist.Value, 0, len(streams))
	for _, s := range streams {
		entries = append(entries, plist.Dict(
			plist.Entry("type", plist.Int(int64(StreamTypeAudio))),
			plist.Entry("dataPort", plist.Int(int64(s.DataPort))),
			plist.Entry("controlPort", plist.Int(int64(s.ControlPort))),
		))
	}
	v := plist.Dict(plist.Entry("streams", plist.Array(entries...)))
	return plist.Encode(v)
}

// BuildSetupPhase2 encodes the AP2 SETUP phase 2 request body: one or
// more audio streams (type=96) carrying codec tag, sample rate, channel
// count, sample depth, and the per-stream shk.
func BuildSetupPhase2(streams []StreamDescriptor) ([]byte, error) {
	entries := make([]*plist.Value, 0, len(streams))
	for _, s := range streams {
		entries = append(entries, plist.Dict(
			plist.Entry("type", plist.Int(int64(StreamTypeAudio))),
			plist.Entry("ct", plist.Int(int64(s.Codec))),
			plist.Entry("sr", plist.Int(int64(s.SampleRate))),
			plist.Entry("ch", plist.Int(int64(s.Channels))),
			plist.Entry("ss", plist.Int(int64(s.SampleSize))),
			plist.Entry("shk", plist.Data(s.SharedKey[:])),
		))
	}
	v := plist.Dict(plist.Entry("streams", plist.Array(entries...)))
	return plist.Encode(v)
}

// ParseSetupPhase2Response extracts each negotiated stream's data/control
// ports from a SETUP phase 2 response body.
func ParseSetupPhase2Response(body []byte) ([]StreamDescriptor, error) {
	v, err := plist.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("session: decode SETUP phase 2 response: %w", err)
	}
	streamsVal := v.Get("streams")
	if streamsVal == nil {
		return nil, fmt.Errorf("session: SETUP phase 2 response missing streams")
	}
	out := make([]StreamDescriptor, 0, len(streamsVal.Array))
	for _, sv := range streamsVal.Array {
		var d StreamDescriptor
		d.Type = StreamTypeAudio
		if p := sv.Get("dataPort"); p != nil {
			d.DataPort = int(p.Int)
		}
		if p := sv.Get("controlPort"); p != nil {
			d.ControlPort = int(p.Int)
		}
		out = append(out, d)
	}
	return out, nil
}

// BuildPlayBody encodes an AP2 `/play` PLAY control-channel body carrying
// a content location, start position, and optional track metadata.
func BuildPlayBody(contentLocation string, startPosition float64, meta *Metadata) ([]byte, error) {
	entries := []plist.DictEntry{
		plist.Entry("Content-Location", plist.String(contentLocation)),
		plist.Entry("Start-Position", plist.Real(startPosition)),
	}
	if meta != nil {
		entries = append(entries, plist.Entry("trackInfo", plist.Dict(
			plist.Entry("title", plist.String(meta.Title)),
			plist.Entry("artist", plist.String(meta.Artist)),
			plist.Entry("album", plist.String(meta.Album)),
		)))
	}
	return plist.Encode(plist.Dict(entries...))
}
