package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"

	"github.com/qldap/ldap-vacation/internal/cache"
	"github.com/qldap/ldap-vacation/internal/config"
	"github.com/qldap/ldap-vacation/internal/directory"
)

type BearerAuth struct {
	cfg    *config.Config
	logger zerolog.Logger

	fetchKeys func(ctx context.Context, url string) (jwk.Set, error)

	// ksMu guards the cached keyset; handlers refresh it concurrently.
	ksMu   sync.Mutex
	keyset jwk.Set
	ksAt   time.Time
	ksTTL  time.Duration

	verCache *cache.Cache[string, *Principal]
}

func NewBearerAuth(cfg *config.Config, logger zerolog.Logger) *BearerAuth {
	return &BearerAuth{
		cfg:    cfg,
		logger: logger,
		fetchKeys: func(ctx context.Context, url string) (jwk.Set, error) {
			return jwk.Fetch(ctx, url)
		},
		ksTTL:    10 * time.Minute,
		verCache: cache.New[string, *Principal](2 * time.Minute),
	}
}

// keys returns the cached JWKS, refetching it once when the TTL lapses.
func (b *BearerAuth) keys(ctx context.Context) (jwk.Set, error) {
	b.ksMu.Lock()
	defer b.ksMu.Unlock()

	if b.keyset != nil && time.Since(b.ksAt) <= b.ksTTL {
		return b.keyset, nil
	}
	set, err := b.fetchKeys(ctx, b.cfg.Auth.JWKSURL)
	if err != nil {
		return nil, err
	}
	b.keyset = set
	b.ksAt = time.Now()
	return set, nil
}

// Authenticate validates a JWT against the configured JWKS and maps its
// subject to a directory entry via the token-user attribute.
func (b *BearerAuth) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if p, ok := b.verCache.Get(token); ok && p != nil {
		return p, nil
	}

	if b.cfg.Auth.JWKSURL == "" {
		return nil, errors.New("no jwt validation configured")
	}

	set, err := b.keys(ctx)
	if err != nil {
		return nil, err
	}

	tok, err := jwt.Parse([]byte(token), jwt.WithKeySet(set), jwt.WithValidate(true))
	if err != nil {
		return nil, err
	}
	if iss := tok.Issuer(); b.cfg.Auth.Issuer != "" && iss != b.cfg.Auth.Issuer {
		return nil, errors.New("issuer mismatch")
	}
	if aud := tok.Audience(); len(aud) > 0 && b.cfg.Auth.Audience != "" {
		found := false
		for _, a := range aud {
			if a == b.cfg.Auth.Audience {
				found = true
				break
			}
		}
		if !found {
			return nil, errors.New("audience mismatch")
		}
	}
	sub := tok.Subject()
	if sub == "" {
		return nil, errors.New("no sub")
	}

	sess, err := directory.Open(b.cfg.LDAP, b.logger)
	if err != nil {
		b.logger.Error().Err(err).Msg("bearer auth: session open failed")
		return nil, err
	}
	defer sess.Close()
	sess.ApplyDeadline(ctx)

	entry, err := directory.FindByAttr(sess, b.cfg.LDAP, b.cfg.Auth.TokenUserAttr, sub, []string{"uid", "mail"})
	if err != nil {
		b.logger.Debug().Err(err).Str("sub", sub).Msg("bearer auth: subject lookup failed")
		return nil, errors.New("user not found")
	}

	p := &Principal{
		Login: firstNonEmpty(entry.GetAttributeValue("uid"), sub),
		Email: entry.GetAttributeValue("mail"),
		DN:    entry.DN,
	}
	b.verCache.Set(token, p, time.Now().Add(2*time.Minute))
	return p, nil
}
