package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/qldap/ldap-vacation/internal/config"
	"github.com/qldap/ldap-vacation/internal/directory"
)

type BasicAuth struct {
	Cfg    *config.Config
	Logger zerolog.Logger
}

// Authenticate resolves the username to its directory entry through the
// same filter template the vacation service uses, then verifies the
// password with a bind under the user's own DN on a second session.
func (b *BasicAuth) Authenticate(ctx context.Context, header string) (*Principal, error) {
	username, password, err := parseBasicHeader(header)
	if err != nil {
		return nil, err
	}

	sess, err := directory.Open(b.Cfg.LDAP, b.Logger)
	if err != nil {
		b.Logger.Error().Err(err).Msg("basic auth: session open failed")
		return nil, err
	}
	defer sess.Close()
	sess.ApplyDeadline(ctx)

	// The login is offered for both placeholders; with a
	// (mail=%email)-style template users authenticate with their address.
	id := directory.Identity{Login: username, Email: username}
	entry, err := directory.FindEntry(sess, b.Cfg.LDAP, id, []string{"uid", "mail"})
	if err != nil {
		b.Logger.Debug().Err(err).Str("login", username).Msg("basic auth: user lookup failed")
		return nil, errors.New("user not found")
	}

	userSess, err := directory.OpenAs(b.Cfg.LDAP, entry.DN, password, b.Logger)
	if err != nil {
		b.Logger.Debug().Err(err).Str("user_dn", entry.DN).Msg("basic auth: user bind failed")
		return nil, errors.New("invalid credentials")
	}
	userSess.Close()

	return &Principal{
		Login: firstNonEmpty(entry.GetAttributeValue("uid"), username),
		Email: entry.GetAttributeValue("mail"),
		DN:    entry.DN,
	}, nil
}

func parseBasicHeader(header string) (username, password string, err error) {
	if header == "" {
		return "", "", errors.New("no auth")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "basic") {
		return "", "", errors.New("not basic")
	}
	dec, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", err
	}
	creds := strings.SplitN(string(dec), ":", 2)
	if len(creds) != 2 || creds[0] == "" {
		return "", "", errors.New("malformed basic")
	}
	return creds[0], creds[1], nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
