package socks5

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/socks5d/socks5d/internal/metrics"
)

// Dialer is the subset of net.Dialer the session needs to establish the
// upstream CONNECT. Tests substitute this to simulate dial failures
// without touching the network.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Session drives one accepted connection from Accepted through the states
// of §4.C to Closed. It is ephemeral and not reused across connections.
type Session struct {
	conn   net.Conn
	auth   *Authenticator
	dialer Dialer
	logger *slog.Logger
	metric *metrics.Collector

	handshakeTimeout time.Duration
	dialTimeout      time.Duration
}

// Option configures optional Session behavior.
type Option func(*Session)

// WithLogger attaches a structured logger; a discarding logger is used if
// omitted.
func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.logger = l } }

// WithMetrics attaches a metrics collector. A nil collector (including the
// zero value of this option) is safe: every Collector method no-ops on nil.
func WithMetrics(m *metrics.Collector) Option { return func(s *Session) { s.metric = m } }

// WithDialer overrides the upstream dialer, primarily for tests.
func WithDialer(d Dialer) Option { return func(s *Session) { s.dialer = d } }

// WithHandshakeTimeout bounds the greeting/auth/request phases with a
// connection deadline, cleared before the relay phase begins. Zero means
// no deadline, matching the base specification's "no timeout mandated".
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Session) { s.handshakeTimeout = d }
}

// WithDialTimeout bounds the upstream connect attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(s *Session) { s.dialTimeout = d }
}

// NewSession constructs a Session over an accepted connection. auth must
// not be nil.
func NewSession(conn net.Conn, auth *Authenticator, opts ...Option) *Session {
	s := &Session{
		conn:   conn,
		auth:   auth,
		dialer: &net.Dialer{},
		logger: slog.New(discardHandler{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve runs the full state machine to completion and closes the client
// connection before returning. Errors are logged, not returned; errors in
// the greeting and credential phases close without a SOCKS5 reply, and
// request-phase errors send a failure reply first. Panics are not
// recovered.
func (s *Session) Serve(ctx context.Context) {
	defer s.conn.Close()
	s.metric.SessionStarted()

	outcome := "protocol_error"
	defer func() { s.metric.SessionEnded(outcome) }()

	if s.handshakeTimeout > 0 {
		_ = s.conn.SetDeadline(time.Now().Add(s.handshakeTimeout))
	}

	peer := s.conn.RemoteAddr()
	s.logger.Info("accepted connection", slog.Any("peer", peer))

	method, err := s.negotiateMethod()
	if err != nil {
		s.logger.Warn("method negotiation failed", slog.Any("peer", peer), slog.Any("error", err))
		outcome = classifyAuthOutcome(err)
		return
	}

	if method.Kind() == KindUserPass {
		if err := s.negotiateCredentials(); err != nil {
			s.logger.Info("credential check failed", slog.Any("peer", peer))
			outcome = "auth_failed"
			return
		}
	}

	req, err := s.readRequest()
	if err != nil {
		s.logger.Warn("request parse failed", slog.Any("peer", peer), slog.Any("error", err))
		s.replyAndClose(classifyRequestError(err))
		return
	}

	if req.Command != CmdConnect {
		s.logger.Info("unsupported command", slog.Any("peer", peer), slog.String("command", req.Command.String()))
		s.replyAndClose(ReplyCommandNotSupported)
		outcome = "protocol_error"
		return
	}

	upstream, err := s.connectUpstream(ctx, req.Dest)
	if err != nil {
		code := classifyDialError(err)
		s.logger.Warn("upstream unreachable", slog.Any("peer", peer), slog.String("dest", req.Dest.String()), slog.Any("error", err))
		s.replyAndClose(code)
		outcome = "upstream_unreachable"
		return
	}
	defer upstream.Close()

	bound := NewIPAddress(upstreamBoundIP(upstream), upstreamBoundPort(upstream))
	if err := WriteReply(s.conn, ReplySuccess, bound); err != nil {
		s.logger.Warn("failed to write success reply", slog.Any("peer", peer), slog.Any("error", err))
		outcome = "protocol_error"
		return
	}
	s.metric.ReplySent(ReplySuccess.String())

	if s.handshakeTimeout > 0 {
		_ = s.conn.SetDeadline(time.Time{})
	}
	if tc, ok := upstream.(interface{ SetDeadline(time.Time) error }); ok {
		_ = tc.SetDeadline(time.Time{})
	}

	s.logger.Info("relaying", slog.Any("peer", peer), slog.String("dest", req.Dest.String()))
	relay(s.conn, upstream, s.metric)
	outcome = "relayed"
}

// negotiateMethod reads the greeting, selects a method, and emits the
// method selection, returning ErrNoAcceptableMethods (after having already
// emitted 0xFF) when nothing overlaps.
func (s *Session) negotiateMethod() (AuthMethod, error) {
	greeting, err := ReadGreeting(s.conn)
	if err != nil {
		return AuthMethod{}, err
	}
	s.logger.Log(context.Background(), LevelTrace, "parsed greeting", slog.Int("offered", len(greeting.Methods)))

	method := s.auth.Select(greeting.Methods)
	if err := WriteMethodSelection(s.conn, method); err != nil {
		return AuthMethod{}, err
	}

	if method.Kind() == KindNoMethods {
		s.metric.AuthAttempt("none", "no_acceptable_method")
		return AuthMethod{}, ErrNoAcceptableMethods
	}

	s.logger.Debug("selected method", slog.String("method", method.String()))
	return method, nil
}

// negotiateCredentials runs the RFC 1929 exchange; on a miss it has
// already emitted the failure reply per Negotiate's contract.
func (s *Session) negotiateCredentials() error {
	err := Negotiate(s.conn, s.auth.credentials)
	if err != nil {
		s.metric.AuthAttempt(UserPass.String(), "denied")
		return err
	}
	s.metric.AuthAttempt(UserPass.String(), "ok")
	return nil
}

func (s *Session) readRequest() (Request, error) {
	req, err := ReadRequest(s.conn)
	if err != nil {
		return Request{}, err
	}
	s.logger.Debug("parsed request", slog.String("command", req.Command.String()), slog.String("dest", req.Dest.String()))
	return req, nil
}

// connectUpstream resolves req's destination (trying each candidate in
// order for a Domain address) and dials the first that succeeds.
func (s *Session) connectUpstream(ctx context.Context, dest Address) (net.Conn, error) {
	if s.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.dialTimeout)
		defer cancel()
	}

	candidates, err := Resolve(ctx, dest)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no addresses for %s", errNoRoute, dest.String())
	}

	var lastErr error
	for _, addr := range candidates {
		conn, err := s.dialer.DialContext(ctx, "tcp", addr.String())
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// replyAndClose emits the compact failure reply and records it in
// metrics; the deferred conn.Close in Serve tears the connection down.
func (s *Session) replyAndClose(code ReplyCode) {
	_ = WriteFailureReply(s.conn, code)
	s.metric.ReplySent(code.String())
}

var errNoRoute = errors.New("socks5: domain resolved to no addresses")

// classifyAuthOutcome maps a negotiateMethod error to a metrics outcome
// label; ErrNoAcceptableMethods is the only case reachable after a reply
// has already been written (0xFF), everything else is a fatal no-reply
// close.
func classifyAuthOutcome(err error) string {
	if errors.Is(err, ErrNoAcceptableMethods) {
		return "auth_failed"
	}
	return "protocol_error"
}

// classifyRequestError maps a request-parse error to the reply code the
// state machine in §4.C prescribes.
func classifyRequestError(err error) ReplyCode {
	switch {
	case errors.Is(err, ErrUnsupportedAddressType):
		return ReplyAddrTypeNotSupported
	case errors.Is(err, ErrUnsupportedCommand):
		return ReplyCommandNotSupported
	default:
		return ReplyFailure
	}
}

func upstreamBoundIP(c net.Conn) net.IP {
	if addr, ok := c.LocalAddr().(*net.TCPAddr); ok {
		return addr.IP
	}
	return net.IPv4zero
}

func upstreamBoundPort(c net.Conn) uint16 {
	if addr, ok := c.LocalAddr().(*net.TCPAddr); ok {
		return uint16(addr.Port)
	}
	return 0
}

// discardHandler is a slog.Handler that drops every record; used as the
// Session default so callers need not configure logging to use the type.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
