package router

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/qldap/ldap-vacation/internal/api"
	"github.com/qldap/ldap-vacation/internal/auth"
	"github.com/qldap/ldap-vacation/internal/config"
)

type Router struct {
	config   *config.Config
	handlers *api.Handlers
	auth     *auth.Chain
	logger   zerolog.Logger
}

func New(cfg *config.Config, h *api.Handlers, authn *auth.Chain, logger zerolog.Logger) http.Handler {
	r := &Router{
		config:   cfg,
		handlers: h,
		auth:     authn,
		logger:   logger,
	}
	return r.setupRoutes()
}

func (r *Router) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", r.handleHealth)

	base := r.getBasePath()
	mux.HandleFunc(base+"vacation", r.protected(r.handleVacation))
	mux.HandleFunc(base+"vacation/history", r.protected(r.handlers.HandleHistory))

	return mux
}

func (r *Router) getBasePath() string {
	base := r.config.HTTP.BasePath
	if base == "" || base[0] != '/' {
		base = "/api"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Router) handleVacation(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.handlers.HandleGetVacation(w, req)
	case http.MethodPut:
		r.handlers.HandleSaveVacation(w, req)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// protected authenticates the request, stashes the principal in the
// context and logs the request with status and timing.
func (r *Router) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		p, err := r.authenticate(req)
		if err != nil || p == nil {
			r.logAttempt(req, err)
			w.Header().Set("WWW-Authenticate", `Basic realm="Vacation", charset="UTF-8"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		req = req.WithContext(auth.WithPrincipal(req.Context(), p))

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next(rec, req)
		dur := time.Since(start)

		r.logger.Info().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Str("user", p.Login).
			Int("status", statusOrDefault(rec.status)).
			Int("bytes", rec.bytes).
			Float64("duration_ms", float64(dur.Microseconds())/1000.0).
			Str("ip", realIP(req)).
			Str("user_agent", req.Header.Get("User-Agent")).
			Msg("http request")
	}
}

func (r *Router) authenticate(req *http.Request) (*auth.Principal, error) {
	authz := req.Header.Get("Authorization")
	lower := strings.ToLower(authz)

	if strings.HasPrefix(lower, "bearer ") && r.auth.BearerEnabled() {
		return r.auth.BearerAuthenticate(req.Context(), strings.TrimSpace(authz[7:]))
	}

	if r.auth.BasicEnabled() {
		return r.auth.BasicAuthenticate(req.Context(), authz)
	}

	return nil, errors.New("no auth")
}

func (r *Router) logAttempt(req *http.Request, authErr error) {
	authz := req.Header.Get("Authorization")
	authType := ""
	if i := strings.IndexByte(authz, ' '); i > 0 {
		authType = strings.ToLower(authz[:i])
	}

	logEvent := r.logger.Info().
		Bool("auth_success", false).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("ip", realIP(req)).
		Str("user_agent", req.Header.Get("User-Agent")).
		Str("auth_type", authType)

	if authErr != nil {
		logEvent = logEvent.Str("error", authErr.Error())
	}

	logEvent.Msg("auth attempt")
}
