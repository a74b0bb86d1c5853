// Package server runs the TCP accept loop that hands each incoming
// connection to a session.Handler against one shared video source.
// Grounded on zsiec-prism/ingest/srt/server.go's Start/accept-loop/
// ctx.Done()-close shape, adapted from SRT to plain TCP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/zsiec/vtsourced/internal/metrics"
	"github.com/zsiec/vtsourced/internal/session"
	"github.com/zsiec/vtsourced/internal/videosource"
)

// defaultShutdownGrace is how long Run waits, once it stops accepting, for
// in-flight connections to exit on their own before force-closing whatever
// sockets remain open.
const defaultShutdownGrace = 5 * time.Second

// Server accepts TCP connections on Addr and dispatches each to a
// session.Handler bound to Source.
type Server struct {
	log           *slog.Logger
	addr          string
	source        *videosource.Source
	met           *metrics.Metrics
	idleTimeout   time.Duration
	shutdownGrace time.Duration

	// ready, if set, receives the actual bound address once Run starts
	// listening. Used by tests that bind to port 0.
	ready chan<- string

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

// New creates a Server. If log is nil, slog.Default() is used.
func New(addr string, source *videosource.Source, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:           log.With("component", "server"),
		addr:          addr,
		source:        source,
		shutdownGrace: defaultShutdownGrace,
	}
}

// WithReadyChannel reports the bound address on ch once Run starts
// listening, for callers (chiefly tests) that bind to an ephemeral port.
func (s *Server) WithReadyChannel(ch chan<- string) *Server {
	s.ready = ch
	return s
}

// WithMetrics attaches a metrics sink recording connection counts and, via
// the per-connection session.Handler, command outcomes.
func (s *Server) WithMetrics(m *metrics.Metrics) *Server {
	s.met = m
	return s
}

// WithIdleTimeout bounds how long a connection's handler may wait for the
// next command line before the connection is dropped as idle. Zero (the
// default) disables the timeout.
func (s *Server) WithIdleTimeout(d time.Duration) *Server {
	s.idleTimeout = d
	return s
}

// WithShutdownGrace overrides how long Run waits for in-flight connections
// to exit on their own during shutdown before force-closing the rest.
func (s *Server) WithShutdownGrace(d time.Duration) *Server {
	s.shutdownGrace = d
	return s
}

// Run binds addr and accepts connections until ctx is cancelled, at which
// point it stops accepting and gives in-flight connections up to
// shutdownGrace to finish their current command and exit on their own
// before force-closing whatever sockets remain open (chiefly connections
// idle in a command read, which has no deadline of its own and would
// otherwise block forever).
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.log.Info("listening", "addr", l.Addr().String())
	if s.ready != nil {
		s.ready <- l.Addr().String()
	}

	s.conns = make(map[net.Conn]struct{})

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := l.Accept()
		if err != nil {
			// The listener is closed only once ctx is done, so by the
			// time Accept fails no further connection can be added to
			// conns: draining here is final.
			s.drainConns(&wg)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept on %s: %w", s.addr, err)
		}

		s.trackConn(conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.untrackConn(conn)
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeOpenConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// drainConns waits for every in-flight handler goroutine tracked by wg to
// exit on its own, giving them up to shutdownGrace before forcing closed
// whatever connections remain open.
func (s *Server) drainConns(wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(s.shutdownGrace):
		s.log.Warn("shutdown grace period elapsed, closing remaining connections")
		s.closeOpenConns()
		<-done
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	if s.met != nil {
		s.met.ConnectionsTotal.Inc()
		s.met.ConnectionsActive.Inc()
		defer s.met.ConnectionsActive.Dec()
	}

	h := session.NewHandler(s.log, s.source, conn).
		WithMetrics(s.met).
		WithIdleTimeout(s.idleTimeout)
	if err := h.Serve(ctx); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Warn("session ended with error", "remote", conn.RemoteAddr().String(), "err", err)
	}
}
