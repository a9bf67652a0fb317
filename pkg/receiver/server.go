package receiver

import (
	"net"

	"github.com/rs/zerolog"
)

// Server accepts controller connections and serves each with a Session.
type Server struct {
	listener net.Listener
	cfg      SessionConfig
	log      zerolog.Logger
}

// NewServer wraps an already-bound listener (typically net.Listen("tcp",
// addr)) with the accessory identity and audio sink factory each accepted
// Session needs.
func NewServer(listener net.Listener, cfg SessionConfig, log zerolog.Logger) *Server {
	return &Server{listener: listener, cfg: cfg, log: log}
}

// Serve accepts connections until the listener is closed, running each
// Session in its own goroutine.
func (srv *Server) Serve() error {
	for {
		conn, err := srv.listener.Accept()
		if err != nil {
			return err
		}
		go srv.handleConn(conn)
	}
}

func (srv *Server) handleConn(conn net.Conn) {
	s := NewSession(conn, srv.cfg)
	if err := s.Serve(); err != nil {
		srv.log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("session ended")
	}
}

// Close stops accepting new connections.
func (srv *Server) Close() error {
	return srv.listener.Close()
}
