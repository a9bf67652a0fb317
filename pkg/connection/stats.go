package connection

import (
	"sync/atomic"
	"time"
)

// Stats is a snapshot of Manager traffic and health counters. All
// fields are read under Manager.mu; BytesSent/BytesReceived are updated with atomic adds from the reader/writer goroutines so
// counting does not require holding the state lock.
type Stats struct {
	BytesSent        uint64
	BytesReceived    uint64
	ConnectedAt      time.Time
	ReconnectAttempts int
	LastError        error
	RTT              time.Duration
}

// counters holds the atomically-updated fields backing Stats, kept
// separate so Manager.Stats() can assemble a consistent snapshot without
// copying an atomic value by mistake.
type counters struct {
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
}

func (c *counters) addSent(n int) {
	if n > 0 {
		c.bytesSent.Add(uint64(n))
	}
}

func (c *counters) addReceived(n int) {
	if n > 0 {
		c.bytesReceived.Add(uint64(n))
	}
}
