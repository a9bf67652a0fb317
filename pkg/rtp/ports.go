package rtp

import (
	"fmt"
	"net"

	"github.com/openairplay/airplay/internal/liberrors"
)

// StreamSockets is the three UDP endpoints per audio stream: data,
// control, and timing. Each local socket is bound to
// an ephemeral port, then "connected" to the server's address so
// subsequent reads are filtered to that peer.
type StreamSockets struct {
	Data    *net.UDPConn
	Control *net.UDPConn
	Timing  *net.UDPConn
}

// BindLocal opens three ephemeral local UDP sockets for one audio stream.
func BindLocal() (*StreamSockets, error) {
	data, err := bindEphemeral()
	if err != nil {
		return nil, err
	}
	control, err := bindEphemeral()
	if err != nil {
		data.Close()
		return nil, err
	}
	timing, err := bindEphemeral()
	if err != nil {
		data.Close()
		control.Close()
		return nil, err
	}
	return &StreamSockets{Data: data, Control: control, Timing: timing}, nil
}

func bindEphemeral() (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, liberrors.Transport("UDP_BIND_FAILED", "failed to bind ephemeral UDP port", err)
	}
	return conn, nil
}

// LocalPorts returns the (data, control, timing) local port numbers, used
// to fill in the SETUP request's Transport header.
func (s *StreamSockets) LocalPorts() (data, control, timing int) {
	return localPort(s.Data), localPort(s.Control), localPort(s.Timing)
}

func localPort(c *net.UDPConn) int {
	if c == nil {
		return 0
	}
	if addr, ok := c.LocalAddr().(*net.UDPAddr); ok {
		return addr.Port
	}
	return 0
}

// ConnectRemote "connects" each socket to the server's address/ports
// returned by SETUP, so subsequent reads are filtered to that peer.
func (s *StreamSockets) ConnectRemote(host string, dataPort, controlPort, timingPort int) error {
	var err error
	if s.Data, err = connectSocket(s.Data, host, dataPort); err != nil {
		return err
	}
	if s.Control, err = connectSocket(s.Control, host, controlPort); err != nil {
		return err
	}
	if s.Timing, err = connectSocket(s.Timing, host, timingPort); err != nil {
		return err
	}
	return nil
}

// connectSocket re-dials a connected UDP socket bound to the same local
// port as c, working around net.UDPConn having no in-place "connect".
// Passing port 0 leaves c unconnected and returns it unchanged.
func connectSocket(c *net.UDPConn, host string, port int) (*net.UDPConn, error) {
	if port == 0 {
		return c, nil
	}
	remote, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return c, liberrors.Transport("UDP_BIND_FAILED", "resolve remote UDP address", err)
	}
	local := c.LocalAddr().(*net.UDPAddr)
	nc, err := net.DialUDP("udp", local, remote)
	if err != nil {
		return c, liberrors.Transport("UDP_BIND_FAILED", "connect remote UDP address", err)
	}
	c.Close()
	return nc, nil
}

// Close releases all three sockets, tolerating any already closed.
func (s *StreamSockets) Close() {
	if s.Data != nil {
		s.Data.Close()
	}
	if s.Control != nil {
		s.Control.Close()
	}
	if s.Timing != nil {
		s.Timing.Close()
	}
}
