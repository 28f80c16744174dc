package socks5

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/socks5d/socks5d/internal/metrics"
	"github.com/socks5d/socks5d/internal/netutil"
)

var (
	dialControl   = netutil.ControlDial
	listenControl = netutil.ControlListen
)

// defaultMaxSessions bounds concurrently active sessions when the caller
// does not configure one, closing the open DoS question from §9 of the
// base specification (an unbounded accept loop under load).
const defaultMaxSessions = 4096

// Server binds a SOCKS5 listener and dispatches one Session per accepted
// connection (§4.E). It holds only the immutable, shared, read-only state
// every Session needs: the enabled-methods set and the credential table.
type Server struct {
	host string
	port uint16

	auth   *Authenticator
	logger *slog.Logger
	metric *metrics.Collector

	sessionSem       *semaphore.Weighted
	handshakeTimeout time.Duration
	dialTimeout      time.Duration
	outboundIP       net.IP
}

// ServerOption configures optional Server behavior.
type ServerOption func(*Server)

// WithServerLogger attaches a structured logger.
func WithServerLogger(l *slog.Logger) ServerOption { return func(s *Server) { s.logger = l } }

// WithServerMetrics attaches a metrics collector; nil disables metrics.
func WithServerMetrics(m *metrics.Collector) ServerOption {
	return func(s *Server) { s.metric = m }
}

// WithMaxSessions bounds the number of concurrently active sessions. n<=0
// falls back to defaultMaxSessions.
func WithMaxSessions(n int64) ServerOption {
	return func(s *Server) {
		if n <= 0 {
			n = defaultMaxSessions
		}
		s.sessionSem = semaphore.NewWeighted(n)
	}
}

// WithServerHandshakeTimeout bounds the handshake phase of every session.
func WithServerHandshakeTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.handshakeTimeout = d }
}

// WithServerDialTimeout bounds the upstream connect attempt of every
// session.
func WithServerDialTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.dialTimeout = d }
}

// WithOutboundIP pins every upstream dial to originate from ip, for
// multi-homed deployments that bind a distinct source address per
// listener. Nil disables pinning (the OS chooses the source address).
func WithOutboundIP(ip net.IP) ServerOption {
	return func(s *Server) { s.outboundIP = ip }
}

// NewServer constructs a Server for the given bind host/port, enabled
// methods, and credential table. This is the construction interface of
// §6: `(bind_host, bind_port, enabled_methods, credentials) → Server`.
func NewServer(host string, port uint16, enabled MethodSet, credentials *CredentialStore, opts ...ServerOption) *Server {
	s := &Server{
		host:       host,
		port:       port,
		auth:       NewAuthenticator(enabled, credentials),
		logger:     slog.New(discardHandler{}),
		sessionSem: semaphore.NewWeighted(defaultMaxSessions),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve binds the listening socket and runs the accept loop until ctx is
// canceled or the listener fails unrecoverably. An accept error is logged
// and the loop continues, per §4.E; it never terminates the server on its
// own.
func (s *Server) Serve(ctx context.Context) error {
	lc := net.ListenConfig{Control: listenControl}
	addr := net.JoinHostPort(s.host, strconv.Itoa(int(s.port)))

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("socks5: listen %s: %w", addr, err)
	}
	defer ln.Close()

	s.logger.Info("listening", slog.String("addr", addr))

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept error", slog.Any("error", err))
			continue
		}

		if err := s.sessionSem.Acquire(ctx, 1); err != nil {
			conn.Close()
			return nil
		}

		go func() {
			defer s.sessionSem.Release(1)
			s.dispatch(ctx, conn)
		}()
	}
}

// dispatch builds a Session over conn and runs it to completion.
func (s *Server) dispatch(ctx context.Context, conn net.Conn) {
	dialer := &net.Dialer{Control: dialControl}
	if s.outboundIP != nil {
		dialer.LocalAddr = &net.TCPAddr{IP: s.outboundIP}
	}

	sess := NewSession(conn, s.auth,
		WithLogger(s.logger),
		WithMetrics(s.metric),
		WithDialer(dialer),
		WithHandshakeTimeout(s.handshakeTimeout),
		WithDialTimeout(s.dialTimeout),
	)
	sess.Serve(ctx)
}
