package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/qldap/ldap-vacation/internal/api"
	"github.com/qldap/ldap-vacation/internal/auth"
	"github.com/qldap/ldap-vacation/internal/config"
	"github.com/qldap/ldap-vacation/internal/router"
	"github.com/qldap/ldap-vacation/internal/storage"
	"github.com/qldap/ldap-vacation/internal/storage/postgres"
	"github.com/qldap/ldap-vacation/internal/storage/sqlite"
	"github.com/qldap/ldap-vacation/internal/vacation"
)

type Server struct {
	http   *http.Server
	logger zerolog.Logger
}

func NewServer(cfg *config.Config, logger zerolog.Logger) (*Server, func(), error) {
	var store storage.Store
	var err error

	switch cfg.Storage.Type {
	case "postgres":
		store, err = postgres.New(cfg.Storage.PostgresURL, logger)
	case "sqlite":
		store, err = sqlite.New(cfg.Storage.SQLitePath, logger)
	case "none":
		store = storage.NoopStore{}
	default:
		err = errors.New("unknown storage type: " + cfg.Storage.Type)
	}
	if err != nil {
		return nil, nil, err
	}

	// No long-lived directory connection is held here: every load and
	// save opens and releases its own session.
	svc := vacation.New(cfg.LDAP, logger, store)
	authn := auth.NewChain(cfg, logger)
	handlers := api.NewHandlers(svc, store, logger)
	mux := router.New(cfg, handlers, authn, logger)

	srv := &Server{
		http: &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
	cleanup := func() {
		store.Close()
	}
	logger.Info().Msgf("listening on %s (storage=%s)", cfg.HTTP.Addr, cfg.Storage.Type)
	return srv, cleanup, nil
}

func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
