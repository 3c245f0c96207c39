package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrNotConfigured  = errors.New("not configured")
)

// StatusCoder is implemented by upstream errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// StatusOf returns the upstream HTTP status behind err, 404 for ErrNotFound
// and 0 when unknown.
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	if errors.Is(err, ErrNotFound) {
		return 404
	}
	return 0
}

// ObjectStore is the listings table plus the few side tables the UI reads.
type ObjectStore interface {
	GetObject(ctx context.Context, id string) (Record, error)
	ListObjects(ctx context.Context, q ListQuery) ([]Record, error)
	UpdateObject(ctx context.Context, id string, patch Record) (Record, error)
	DeleteObject(ctx context.Context, id string) (bool, error)

	GetRecord(ctx context.Context, table, column, value string) (Record, error)
	UpdateRecord(ctx context.Context, table, column, value string, patch Record) (Record, error)
	CountRecords(ctx context.Context, table string, filters map[string]string) (int, error)

	// Table is the listings table; IDColumn is the column objects are addressed by.
	Table() string
	IDColumn() string
}

type ListQuery struct {
	Search  string
	Limit   int
	Filters map[string]string // raw PostgREST filters, e.g. {"status": "eq.active"}
}

// Marketplace is the read side of the CIAN public API.
type Marketplace interface {
	LastOrderInfo(ctx context.Context) (map[string]any, error)
	OrderReport(ctx context.Context) (map[string]any, error)
	ImagesReport(ctx context.Context, page, pageSize int) (map[string]any, error)
}

// Notifier delivers a pre-formatted HTML message to the team chat.
type Notifier interface {
	Notify(ctx context.Context, html string) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Journal records automated writes made against the store.
type Journal interface {
	RecordPatch(ctx context.Context, p PatchEntry) error
	LogMiss(ctx context.Context, externalID string, status int, reason string) error
	RecentPatches(ctx context.Context, limit int) ([]PatchEntry, error)
}

type PatchEntry struct {
	ObjectID  string    `json:"object_id"`
	Source    string    `json:"source"` // status-sync | backfill
	Field     string    `json:"field"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// NopJournal is used when no journal database is configured.
type NopJournal struct{}

func (NopJournal) RecordPatch(context.Context, PatchEntry) error { return nil }
func (NopJournal) LogMiss(context.Context, string, int, string) error { return nil }
func (NopJournal) RecentPatches(context.Context, int) ([]PatchEntry, error) { return nil, nil }

// NopNotifier drops messages; used when the notify chat is not configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string) error { return nil }
