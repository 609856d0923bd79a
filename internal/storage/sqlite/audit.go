package sqlite

import (
	"context"

	"github.com/qldap/ldap-vacation/internal/storage"
)

func (s *Store) RecordEvent(ctx context.Context, ev *storage.Event) error {
	enabled := 0
	if ev.Enabled {
		enabled = 1
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_events (
			id, login, dn, action, enabled, outcome, error, created_at
		) values (?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.Login, ev.DN, ev.Action, enabled, ev.Outcome, ev.Error, ev.CreatedAt.UTC())
	return err
}

func (s *Store) ListEventsByLogin(ctx context.Context, login string, limit int) ([]*storage.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, login, dn, action, enabled, outcome, error, created_at
		from audit_events
		where login = ?
		order by created_at desc
		limit ?
	`, login, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*storage.Event
	for rows.Next() {
		var ev storage.Event
		var enabled int
		if err := rows.Scan(&ev.ID, &ev.Login, &ev.DN, &ev.Action, &enabled, &ev.Outcome, &ev.Error, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Enabled = enabled != 0
		events = append(events, &ev)
	}
	return events, rows.Err()
}
