package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qldap/ldap-vacation/internal/api"
	"github.com/qldap/ldap-vacation/internal/auth"
	"github.com/qldap/ldap-vacation/internal/config"
	"github.com/qldap/ldap-vacation/internal/storage"
	"github.com/qldap/ldap-vacation/internal/vacation"
)

func testRouter(t *testing.T, basePath string) http.Handler {
	t.Helper()
	cfg := &config.Config{
		HTTP: config.HTTPConfig{BasePath: basePath},
		LDAP: config.LDAPConfig{
			URL:              "ldap://127.0.0.1:1",
			BaseDN:           "dc=example,dc=com",
			Filter:           "(uid=%login)",
			ReplyTextAttr:    "mailreplytext",
			DeliveryModeAttr: "deliverymode",
		},
	}
	// No auth mechanism enabled: every protected route must refuse.
	chain := auth.NewChain(cfg, zerolog.Nop())
	svc := vacation.New(cfg.LDAP, zerolog.Nop(), storage.NoopStore{})
	h := api.NewHandlers(svc, storage.NoopStore{}, zerolog.Nop())
	return New(cfg, h, chain, zerolog.Nop())
}

func TestHealthIsPublic(t *testing.T) {
	r := testRouter(t, "/api")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestVacationRequiresAuth(t *testing.T) {
	r := testRouter(t, "/api")

	for _, path := range []string{"/api/vacation", "/api/vacation/history"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic", path)
	}
}

func TestBasePathNormalization(t *testing.T) {
	// A base path without a leading slash falls back to the default.
	r := testRouter(t, "no-slash")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/vacation", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r = testRouter(t, "/webmail/api")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webmail/api/vacation", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUnknownPathIs404(t *testing.T) {
	r := testRouter(t, "/api")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
