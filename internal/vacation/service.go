package vacation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/qldap/ldap-vacation/internal/config"
	"github.com/qldap/ldap-vacation/internal/directory"
	"github.com/qldap/ldap-vacation/internal/storage"
)

// Service resolves a user identity to exactly one directory entry and
// reads or writes its two vacation attributes. Every operation opens its
// own short-lived session and releases it on all exit paths; nothing is
// shared between requests.
type Service struct {
	cfg    config.LDAPConfig
	logger zerolog.Logger
	audit  storage.Store

	open func() (*directory.Session, error)
}

func New(cfg config.LDAPConfig, logger zerolog.Logger, audit storage.Store) *Service {
	s := &Service{
		cfg:    cfg,
		logger: logger.With().Str("component", "vacation").Logger(),
		audit:  audit,
	}
	s.open = func() (*directory.Session, error) {
		return directory.Open(cfg, s.logger)
	}
	return s
}

func (s *Service) attrs() []string {
	return []string{s.cfg.ReplyTextAttr, s.cfg.DeliveryModeAttr}
}

// Load reads the current vacation record. The record invariant applies:
// empty reply text means disabled, whatever the delivery mode says.
func (s *Service) Load(ctx context.Context, id directory.Identity) (*Record, error) {
	sess, err := s.open()
	if err != nil {
		s.logger.Error().Err(err).Str("login", id.Login).Msg("load: session open failed")
		return nil, err
	}
	defer sess.Close()
	sess.ApplyDeadline(ctx)

	entry, err := directory.FindEntry(sess, s.cfg, id, s.attrs())
	if err != nil {
		s.logLookupFailure("load", id, err)
		return nil, err
	}

	rec := &Record{
		DN:        entry.DN,
		ReplyText: entry.GetAttributeValue(s.cfg.ReplyTextAttr),
		Enabled:   EnabledFrom(entry.GetAttributeValues(s.cfg.DeliveryModeAttr)),
	}
	if rec.ReplyText == "" {
		rec.Enabled = false
	}

	s.logger.Debug().Str("login", id.Login).Str("dn", rec.DN).Bool("enabled", rec.Enabled).Msg("vacation record loaded")
	return rec, nil
}

// Save brings the entry's vacation attributes to the desired state with
// the minimal set of modify operations. Empty reply text deletes the
// attribute (directories reject empty-string values) and forces the
// auto-reply off; the delivery mode is only touched when the flag
// actually changes.
func (s *Service) Save(ctx context.Context, id directory.Identity, replyText string, enabled bool) error {
	replyText = strings.TrimSpace(replyText)
	if replyText == "" {
		enabled = false
	}

	sess, err := s.open()
	if err != nil {
		s.logger.Error().Err(err).Str("login", id.Login).Msg("save: session open failed")
		s.recordAudit(ctx, id, "", enabled, err)
		return err
	}
	defer sess.Close()
	sess.ApplyDeadline(ctx)

	entry, err := directory.FindEntry(sess, s.cfg, id, s.attrs())
	if err != nil {
		s.logLookupFailure("save", id, err)
		s.recordAudit(ctx, id, "", enabled, err)
		return err
	}

	dn := entry.DN
	currentText := entry.GetAttributeValue(s.cfg.ReplyTextAttr)
	wasEnabled := EnabledFrom(entry.GetAttributeValues(s.cfg.DeliveryModeAttr))

	if err := s.writeReplyText(sess, dn, currentText, replyText); err != nil {
		s.logger.Error().Err(err).Str("login", id.Login).Str("dn", dn).Msg("save: reply text write failed")
		s.recordAudit(ctx, id, dn, enabled, err)
		return err
	}

	if enabled != wasEnabled {
		if err := s.writeDeliveryMode(sess, dn, enabled); err != nil {
			// The reply text is already committed at this point; there is
			// no multi-attribute transaction to roll back, so the error
			// has to say so instead.
			s.logger.Error().Err(err).Str("login", id.Login).Str("dn", dn).Msg("save: delivery mode write failed after reply text was committed")
			s.recordAudit(ctx, id, dn, enabled, err)
			return err
		}
	}

	s.logger.Info().Str("login", id.Login).Str("dn", dn).Bool("enabled", enabled).Msg("vacation settings saved")
	s.recordAudit(ctx, id, dn, enabled, nil)
	return nil
}

func (s *Service) writeReplyText(sess *directory.Session, dn, current, desired string) error {
	req := ldap.NewModifyRequest(dn, nil)
	switch {
	case desired == "" && current == "":
		return nil
	case desired == "":
		req.Delete(s.cfg.ReplyTextAttr, []string{})
	case desired == current:
		return nil
	default:
		req.Replace(s.cfg.ReplyTextAttr, []string{desired})
	}

	if err := sess.Modify(req); err != nil {
		return &directory.WriteError{DN: dn, Attribute: s.cfg.ReplyTextAttr, Err: err}
	}
	return nil
}

func (s *Service) writeDeliveryMode(sess *directory.Session, dn string, enable bool) error {
	req := ldap.NewModifyRequest(dn, nil)
	if enable {
		req.Add(s.cfg.DeliveryModeAttr, []string{deliveryModeReply})
	} else {
		// Delete the single value, never the attribute, so unrelated
		// delivery modes survive.
		req.Delete(s.cfg.DeliveryModeAttr, []string{deliveryModeReply})
	}

	if err := sess.Modify(req); err != nil {
		return &directory.WriteError{DN: dn, Attribute: s.cfg.DeliveryModeAttr, Partial: true, Err: err}
	}
	return nil
}

func (s *Service) logLookupFailure(op string, id directory.Identity, err error) {
	var nfe *directory.NotFoundError
	var aee *directory.AmbiguousEntryError
	ev := s.logger.Error()
	if errors.As(err, &nfe) || errors.As(err, &aee) {
		// Operator problem: bad filter template or duplicate entries.
		ev = s.logger.Error().Str("hint", "check filter template and directory for duplicates")
	}
	ev.Err(err).Str("op", op).Str("login", id.Login).Str("email", id.Email).Msg("entry lookup failed")
}

func (s *Service) recordAudit(ctx context.Context, id directory.Identity, dn string, enabled bool, opErr error) {
	if s.audit == nil {
		return
	}
	ev := &storage.Event{
		ID:        uuid.NewString(),
		Login:     id.Login,
		DN:        dn,
		Action:    "save",
		Enabled:   enabled,
		Outcome:   storage.OutcomeOK,
		CreatedAt: time.Now().UTC(),
	}
	if opErr != nil {
		ev.Outcome = storage.OutcomeError
		ev.Error = opErr.Error()
	}
	if err := s.audit.RecordEvent(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("login", id.Login).Msg("audit event not recorded")
	}
}
