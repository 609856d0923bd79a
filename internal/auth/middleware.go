package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/qldap/ldap-vacation/internal/config"
)

// Principal is the authenticated user as resolved against the directory.
// Login and Email feed the vacation filter template; DN is kept for
// logging only.
type Principal struct {
	Login string
	Email string
	DN    string
}

type ctxKey int

const principalKey ctxKey = 1

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}

type Chain struct {
	cfg    *config.Config
	logger zerolog.Logger
	basic  *BasicAuth
	bearer *BearerAuth
}

func NewChain(cfg *config.Config, logger zerolog.Logger) *Chain {
	c := &Chain{cfg: cfg, logger: logger}
	if cfg.Auth.EnableBasic {
		c.basic = &BasicAuth{Cfg: cfg, Logger: logger}
	}
	if cfg.Auth.EnableBearer {
		c.bearer = NewBearerAuth(cfg, logger)
	}
	return c
}

func (c *Chain) BasicEnabled() bool  { return c.basic != nil }
func (c *Chain) BearerEnabled() bool { return c.bearer != nil }

func (c *Chain) BasicAuthenticate(ctx context.Context, header string) (*Principal, error) {
	if c.basic == nil {
		return nil, errors.New("basic disabled")
	}
	return c.basic.Authenticate(ctx, header)
}

func (c *Chain) BearerAuthenticate(ctx context.Context, token string) (*Principal, error) {
	if c.bearer == nil {
		return nil, errors.New("bearer disabled")
	}
	return c.bearer.Authenticate(ctx, token)
}
