package directory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"

	"github.com/qldap/ldap-vacation/internal/config"
)

// Conn is the slice of *ldap.Conn this service actually uses. FakeConn
// implements it too, so the whole lookup-and-update protocol is testable
// without a live directory.
type Conn interface {
	Bind(username, password string) error
	UnauthenticatedBind(username string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Modify(req *ldap.ModifyRequest) error
	SetTimeout(d time.Duration)
	Close() error
}

var _ Conn = (*ldap.Conn)(nil)

// Session owns one connection to the directory for the duration of a
// single logical operation. Callers open, defer Close, and discard it;
// nothing is pooled or reused across requests.
type Session struct {
	conn   Conn
	server string
	logger zerolog.Logger
	closed bool

	// reqTimeout is the configured per-request timeout; zero means no cap
	// beyond what the caller's context imposes.
	reqTimeout time.Duration
}

// NewSession wraps an already-established connection. Production code goes
// through Open/OpenAs; this is the seam for fakes.
func NewSession(conn Conn, server string, logger zerolog.Logger) *Session {
	return &Session{conn: conn, server: server, logger: logger}
}

// Open dials the configured server and binds with the service
// credentials, or anonymously when no bind DN is configured.
func Open(cfg config.LDAPConfig, logger zerolog.Logger) (*Session, error) {
	return open(cfg, cfg.BindDN, cfg.BindPassword, logger)
}

// OpenAs binds with explicit credentials; used to verify a user's
// password during basic authentication.
func OpenAs(cfg config.LDAPConfig, bindDN, password string, logger zerolog.Logger) (*Session, error) {
	return open(cfg, bindDN, password, logger)
}

func open(cfg config.LDAPConfig, bindDN, password string, logger zerolog.Logger) (*Session, error) {
	conn, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	conn.SetTimeout(cfg.RequestTimeout)

	if bindDN != "" {
		err = conn.Bind(bindDN, password)
	} else {
		err = conn.UnauthenticatedBind("")
	}
	if err != nil {
		_ = conn.Close()
		var le *ldap.Error
		if errors.As(err, &le) {
			err = fmt.Errorf("%s (code %d)", ldap.LDAPResultCodeMap[le.ResultCode], le.ResultCode)
		}
		return nil, &AuthenticationError{Server: cfg.URL, BindDN: bindDN, Err: err}
	}

	return &Session{conn: conn, server: cfg.URL, logger: logger, reqTimeout: cfg.RequestTimeout}, nil
}

// Close releases the connection. Safe to call on a nil or already-closed
// session, so it can be deferred unconditionally on every path.
func (s *Session) Close() {
	if s == nil || s.closed || s.conn == nil {
		return
	}
	s.closed = true
	if err := s.conn.Close(); err != nil {
		s.logger.Debug().Err(err).Str("server", s.server).Msg("ldap connection close")
	}
}

// ApplyDeadline tightens the per-request timeout to the caller's context
// deadline when that expires sooner than the configured request timeout.
func (s *Session) ApplyDeadline(ctx context.Context) {
	d, ok := ctx.Deadline()
	if !ok {
		return
	}
	remaining := time.Until(d)
	if s.reqTimeout > 0 && remaining >= s.reqTimeout {
		return
	}
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	s.conn.SetTimeout(remaining)
}

// Search runs the request, translating transport-level failures into
// TimeoutError/ConnectionError. Other protocol errors are returned as-is
// for the caller to classify.
func (s *Session) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	res, err := s.conn.Search(req)
	if err != nil {
		return nil, s.mapTransportErr("search", err)
	}
	return res, nil
}

// Modify runs the request with the same transport error translation as
// Search.
func (s *Session) Modify(req *ldap.ModifyRequest) error {
	if err := s.conn.Modify(req); err != nil {
		return s.mapTransportErr("modify", err)
	}
	return nil
}

func (s *Session) mapTransportErr(op string, err error) error {
	if ldap.IsErrorWithCode(err, ldap.LDAPResultTimeLimitExceeded) {
		return &TimeoutError{Server: s.server, Op: op, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Server: s.server, Op: op, Err: err}
	}
	if ldap.IsErrorWithCode(err, ldap.ErrorNetwork) {
		return &ConnectionError{Server: s.server, Err: err}
	}
	return err
}

func dial(cfg config.LDAPConfig) (Conn, error) {
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		return nil, &ConnectionError{Server: cfg.URL, Err: errors.New("LDAP URL is empty")}
	}

	isLDAPS := strings.HasPrefix(strings.ToLower(u), "ldaps://")
	isLDAP := strings.HasPrefix(strings.ToLower(u), "ldap://")
	if !isLDAP && !isLDAPS {
		return nil, &ConnectionError{Server: cfg.URL, Err: errors.New("URL must start with ldap:// or ldaps://")}
	}

	dialer := &net.Dialer{Timeout: cfg.DialTimeout}

	if isLDAPS {
		conn, err := ldap.DialURL(u,
			ldap.DialWithDialer(dialer),
			ldap.DialWithTLSConfig(tlsConfigFor(u, "ldaps://", cfg.InsecureSkipVerify)))
		if err != nil {
			return nil, dialErr(cfg.URL, err)
		}
		return conn, nil
	}

	conn, err := ldap.DialURL(u, ldap.DialWithDialer(dialer))
	if err != nil {
		return nil, dialErr(cfg.URL, err)
	}

	if cfg.RequireTLS {
		if err := conn.StartTLS(tlsConfigFor(u, "ldap://", cfg.InsecureSkipVerify)); err != nil {
			_ = conn.Close()
			return nil, &ConnectionError{Server: cfg.URL, Err: fmt.Errorf("StartTLS failed: %w", err)}
		}
	}

	return conn, nil
}

func dialErr(server string, err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Server: server, Op: "connect", Err: err}
	}
	return &ConnectionError{Server: server, Err: err}
}

func tlsConfigFor(u, prefix string, insecure bool) *tls.Config {
	tlsConfig := &tls.Config{InsecureSkipVerify: insecure}
	hostPort := strings.TrimPrefix(u, prefix)
	if host, _, err := net.SplitHostPort(hostPort); err == nil && host != "" {
		tlsConfig.ServerName = host
	} else {
		tlsConfig.ServerName = hostPort
	}
	return tlsConfig
}
