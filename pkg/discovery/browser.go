package discovery

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"
)

// ServiceAirPlay2 and ServiceRAOP are the mDNS service types AirPlay
// endpoints advertise.
const (
	ServiceAirPlay2 = "_airplay._tcp.local."
	ServiceRAOP     = "_raop._tcp.local."
)

// Browser discovers AirPlay-capable endpoints on the local network. The
// core only consumes typed Device records from it's
// stated non-goal of owning mDNS browsing itself.
type Browser interface {
	// Browse watches service for as long as ctx is alive, invoking added
	// each time a Device appears (including at first sight) and removed
	// each time one disappears.
	Browse(ctx context.Context, service string, added, removed func(Device)) error
}

// StaticBrowser is a Browser backed by a fixed device list, standing in
// for a live mDNS responder in tests and in callers that already know
// their receivers.
type StaticBrowser struct {
	Devices []Device
}

// Browse reports every configured device as added, then blocks until ctx
// is done. removed is never invoked; a static list has no departures.
func (s StaticBrowser) Browse(ctx context.Context, service string, added, removed func(Device)) error {
	for _, d := range s.Devices {
		added(d)
	}
	<-ctx.Done()
	return ctx.Err()
}

// FromTXT builds a Device from a raw mDNS record: the instance name, the
// resolved host/port, and the raw TXT key/value map.
func FromTXT(name, address string, port int, txt map[string]string) Device {
	d := Device{
		Name:        name,
		Address:     address,
		ControlPort: port,
		TXT:         txt,
		Model:       txt["model"],
		ProtoVers:   txt["protovers"],
		SourceVers:  txt["srcvers"],
	}
	if id, ok := txt["deviceid"]; ok {
		d.ID = id
	} else {
		d.ID = address + ":" + strconv.Itoa(port)
	}
	d.RawFeatures, d.Capabilities = parseFeatures(txt["features"])
	return d
}

// parseFeatures decodes the `features` TXT value: either a
// single hex integer or a comma-separated "lo,hi" pair of 32-bit halves.
func parseFeatures(raw string) (uint64, Capabilities) {
	if raw == "" {
		return 0, 0
	}
	parts := strings.Split(raw, ",")
	var value uint64
	switch len(parts) {
	case 1:
		value = parseHexU64(parts[0])
	case 2:
		lo := parseHexU64(parts[0])
		hi := parseHexU64(parts[1])
		value = (hi << 32) | (lo & 0xFFFFFFFF)
	}
	return value, Capabilities(value)
}

func parseHexU64(s string) uint64 {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return 0
	}
	// hex.DecodeString requires an even-length string; left-pad odd
	// lengths so e.g. "abc" still parses instead of erroring out.
	if len(s)%2 != 0 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return 0
	}
	var v uint64
	for _, b := range raw {
		v = v<<8 | uint64(b)
	}
	return v
}
