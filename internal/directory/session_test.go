package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qldap/ldap-vacation/internal/config"
)

func TestSessionCloseIsIdempotent(t *testing.T) {
	var nilSess *Session
	nilSess.Close()

	fc := &FakeConn{}
	sess := NewSession(fc, "ldap://test", zerolog.Nop())
	sess.Close()
	sess.Close()
	assert.True(t, fc.Closed)
}

func TestApplyDeadline(t *testing.T) {
	t.Run("no deadline leaves the timeout alone", func(t *testing.T) {
		fc := &FakeConn{}
		sess := NewSession(fc, "ldap://test", zerolog.Nop())

		sess.ApplyDeadline(context.Background())
		assert.Zero(t, fc.Timeout)
	})

	t.Run("sooner deadline tightens the timeout", func(t *testing.T) {
		fc := &FakeConn{}
		sess := NewSession(fc, "ldap://test", zerolog.Nop())
		sess.reqTimeout = 10 * time.Second

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		sess.ApplyDeadline(ctx)

		assert.Greater(t, fc.Timeout, time.Duration(0))
		assert.LessOrEqual(t, fc.Timeout, time.Second)
	})

	t.Run("later deadline keeps the configured timeout", func(t *testing.T) {
		fc := &FakeConn{}
		sess := NewSession(fc, "ldap://test", zerolog.Nop())
		sess.reqTimeout = time.Second

		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		sess.ApplyDeadline(ctx)

		assert.Zero(t, fc.Timeout)
	})

	t.Run("expired deadline still sets a positive timeout", func(t *testing.T) {
		fc := &FakeConn{}
		sess := NewSession(fc, "ldap://test", zerolog.Nop())

		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		sess.ApplyDeadline(ctx)

		assert.Greater(t, fc.Timeout, time.Duration(0))
	})
}

func TestOpenRejectsBadURLs(t *testing.T) {
	cases := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"wrong scheme", "http://directory.example.com"},
		{"no scheme", "directory.example.com:389"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Open(config.LDAPConfig{URL: tc.url}, zerolog.Nop())
			var ce *ConnectionError
			require.ErrorAs(t, err, &ce)
		})
	}
}

func TestSearchMapsTimeLimitToTimeout(t *testing.T) {
	fc := &FakeConn{SearchErr: ldap.NewError(ldap.LDAPResultTimeLimitExceeded, errors.New("time limit exceeded"))}
	sess := NewSession(fc, "ldap://test", zerolog.Nop())

	_, err := sess.Search(ldap.NewSearchRequest(
		"dc=example,dc=com",
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 1, false,
		"(uid=alice)", nil, nil,
	))

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "search", te.Op)
	assert.Equal(t, "ldap://test", te.Server)
}

func TestSearchMapsNetworkFailureToConnectionError(t *testing.T) {
	fc := &FakeConn{SearchErr: ldap.NewError(ldap.ErrorNetwork, errors.New("connection reset"))}
	sess := NewSession(fc, "ldap://test", zerolog.Nop())

	_, err := sess.Search(ldap.NewSearchRequest(
		"dc=example,dc=com",
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 1, false,
		"(uid=alice)", nil, nil,
	))

	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
}

func TestSearchPassesProtocolErrorsThrough(t *testing.T) {
	searchErr := ldap.NewError(ldap.LDAPResultInsufficientAccessRights, errors.New("denied"))
	fc := &FakeConn{SearchErr: searchErr}
	sess := NewSession(fc, "ldap://test", zerolog.Nop())

	_, err := sess.Search(ldap.NewSearchRequest(
		"dc=example,dc=com",
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 1, false,
		"(uid=alice)", nil, nil,
	))

	assert.Equal(t, searchErr, err)
}

func TestModifyMapsTransportErrors(t *testing.T) {
	fc := &FakeConn{ModifyErr: func(*ldap.ModifyRequest) error {
		return ldap.NewError(ldap.ErrorNetwork, errors.New("broken pipe"))
	}}
	sess := NewSession(fc, "ldap://test", zerolog.Nop())

	req := ldap.NewModifyRequest("uid=alice,dc=example,dc=com", nil)
	req.Replace("mailreplytext", []string{"text"})

	var ce *ConnectionError
	require.ErrorAs(t, sess.Modify(req), &ce)
}
