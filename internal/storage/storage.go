package storage

import (
	"context"
	"time"
)

// Event is one audit record of a vacation save attempt.
type Event struct {
	ID        string
	Login     string
	DN        string
	Action    string
	Enabled   bool
	Outcome   string
	Error     string
	CreatedAt time.Time
}

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

type Store interface {
	Close()
	RecordEvent(ctx context.Context, ev *Event) error
	ListEventsByLogin(ctx context.Context, login string, limit int) ([]*Event, error)
}

// NoopStore backs STORAGE_TYPE=none: auditing disabled, everything else
// unchanged.
type NoopStore struct{}

func (NoopStore) Close() {}

func (NoopStore) RecordEvent(context.Context, *Event) error { return nil }

func (NoopStore) ListEventsByLogin(context.Context, string, int) ([]*Event, error) {
	return nil, nil
}
