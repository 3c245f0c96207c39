package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
)

const maxReason = 255

// Journal is the MySQL audit log of writes made by status sync and backfill.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Journal { return &Journal{db: db, now: time.Now} }

func (j *Journal) RecordPatch(ctx context.Context, p domain.PatchEntry) error {
	at := p.CreatedAt
	if at.IsZero() {
		at = j.now().UTC()
	}
	if _, err := j.db.ExecContext(ctx, insertPatchSQL, p.ObjectID, p.Source, p.Field, p.Value, at); err != nil {
		return fmt.Errorf("journal patch %s/%s: %w", p.ObjectID, p.Field, err)
	}
	return nil
}

func (j *Journal) LogMiss(ctx context.Context, externalID string, status int, reason string) error {
	if len(reason) > maxReason {
		reason = reason[:maxReason]
	}
	if _, err := j.db.ExecContext(ctx, insertMissSQL, externalID, status, reason); err != nil {
		return fmt.Errorf("journal miss %s: %w", externalID, err)
	}
	return nil
}

func (j *Journal) RecentPatches(ctx context.Context, limit int) ([]domain.PatchEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, recentPatchesSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PatchEntry
	for rows.Next() {
		var p domain.PatchEntry
		if err := rows.Scan(&p.ObjectID, &p.Source, &p.Field, &p.Value, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
