package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/qldap/ldap-vacation/internal/auth"
	"github.com/qldap/ldap-vacation/internal/directory"
	"github.com/qldap/ldap-vacation/internal/storage"
	"github.com/qldap/ldap-vacation/internal/vacation"
)

const maxBodyBytes = 64 << 10

// VacationService is what the handlers need from the vacation package.
type VacationService interface {
	Load(ctx context.Context, id directory.Identity) (*vacation.Record, error)
	Save(ctx context.Context, id directory.Identity, replyText string, enabled bool) error
}

type Handlers struct {
	svc    VacationService
	audit  storage.Store
	logger zerolog.Logger
}

func NewHandlers(svc VacationService, audit storage.Store, logger zerolog.Logger) *Handlers {
	return &Handlers{svc: svc, audit: audit, logger: logger}
}

type vacationPayload struct {
	ReplyText string `json:"reply_text"`
	Enabled   bool   `json:"enabled"`
}

type historyEntry struct {
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handlers) HandleGetVacation(w http.ResponseWriter, req *http.Request) {
	p, ok := auth.PrincipalFrom(req.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	rec, err := h.svc.Load(req.Context(), identityOf(p))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vacationPayload{ReplyText: rec.ReplyText, Enabled: rec.Enabled})
}

func (h *Handlers) HandleSaveVacation(w http.ResponseWriter, req *http.Request) {
	p, ok := auth.PrincipalFrom(req.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body vacationPayload
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	if err := h.svc.Save(req.Context(), identityOf(p), body.ReplyText, body.Enabled); err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "vacation settings saved"})
}

func (h *Handlers) HandleHistory(w http.ResponseWriter, req *http.Request) {
	p, ok := auth.PrincipalFrom(req.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	events, err := h.audit.ListEventsByLogin(req.Context(), p.Login, 50)
	if err != nil {
		h.logger.Error().Err(err).Str("login", p.Login).Msg("audit history query failed")
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	out := make([]historyEntry, 0, len(events))
	for _, ev := range events {
		out = append(out, historyEntry{
			Action:    ev.Action,
			Outcome:   ev.Outcome,
			Enabled:   ev.Enabled,
			CreatedAt: ev.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// writeFailure maps protocol errors to generic client messages. Raw
// directory error text stays in the structured log only.
func (h *Handlers) writeFailure(w http.ResponseWriter, err error) {
	var nfe *directory.NotFoundError
	var aee *directory.AmbiguousEntryError
	var te *directory.TimeoutError
	var ce *directory.ConnectionError
	var we *directory.WriteError

	switch {
	case errors.As(err, &nfe):
		http.Error(w, "vacation settings are not available for this account", http.StatusNotFound)
	case errors.As(err, &aee):
		http.Error(w, "vacation settings are not available for this account", http.StatusInternalServerError)
	case errors.As(err, &te):
		http.Error(w, "directory timeout", http.StatusGatewayTimeout)
	case errors.As(err, &ce):
		http.Error(w, "directory unavailable", http.StatusBadGateway)
	case errors.As(err, &we) && we.Partial:
		http.Error(w, "settings were only partially saved, please retry", http.StatusInternalServerError)
	case errors.As(err, &we):
		http.Error(w, "saving vacation settings failed", http.StatusInternalServerError)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func identityOf(p *auth.Principal) directory.Identity {
	return directory.Identity{Login: p.Login, Email: p.Email}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
