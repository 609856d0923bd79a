package postgres

import (
	"context"

	"github.com/qldap/ldap-vacation/internal/storage"
)

func (s *Store) RecordEvent(ctx context.Context, ev *storage.Event) error {
	_, err := s.pool.Exec(ctx, `
		insert into audit_events (
			id, login, dn, action, enabled, outcome, error, created_at
		) values (
			$1::uuid, $2, $3, $4, $5, $6, $7, $8
		)
	`, ev.ID, ev.Login, ev.DN, ev.Action, ev.Enabled, ev.Outcome, ev.Error, ev.CreatedAt)
	return err
}

func (s *Store) ListEventsByLogin(ctx context.Context, login string, limit int) ([]*storage.Event, error) {
	rows, err := s.pool.Query(ctx, `
		select id::text, login, dn, action, enabled, outcome, error, created_at
		from audit_events
		where login = $1
		order by created_at desc
		limit $2
	`, login, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*storage.Event
	for rows.Next() {
		var ev storage.Event
		if err := rows.Scan(&ev.ID, &ev.Login, &ev.DN, &ev.Action, &ev.Enabled, &ev.Outcome, &ev.Error, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}
