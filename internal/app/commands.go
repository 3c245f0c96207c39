package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/observability"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/listing"
)

const sourceBackfill = "backfill"

type DeleteMode string

const (
	DeleteRemove DeleteMode = "delete"
	DeleteRelist DeleteMode = "relist"
)

// ParseDeleteMode maps the ?mode= query value; blank means delete.
func ParseDeleteMode(s string) (DeleteMode, error) {
	switch DeleteMode(s) {
	case "", DeleteRemove:
		return DeleteRemove, nil
	case DeleteRelist:
		return DeleteRelist, nil
	}
	return "", fmt.Errorf("%w: unknown delete mode %q", domain.ErrInvalidPayload, s)
}

// Update applies a column patch and returns the updated row.
func (s *ObjectService) Update(ctx context.Context, id string, patch domain.Record) (domain.Record, error) {
	if len(patch) == 0 {
		return nil, fmt.Errorf("%w: payload must be a non-empty JSON object", domain.ErrInvalidPayload)
	}
	return s.store.UpdateObject(ctx, id, patch)
}

// UpdateJSON validates raw against the patch schema before updating.
func (s *ObjectService) UpdateJSON(ctx context.Context, id string, raw []byte) (domain.Record, error) {
	patch, err := s.validate.ObjectPatch(raw)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, id, patch)
}

// Delete removes the object or, in relist mode, puts it back to active.
func (s *ObjectService) Delete(ctx context.Context, id string, mode DeleteMode) error {
	switch mode {
	case DeleteRelist:
		_, err := s.store.UpdateObject(ctx, id, domain.Record{"status": string(listing.StatusActive)})
		return err
	case DeleteRemove, "":
		ok, err := s.store.DeleteObject(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound
		}
		return nil
	}
	return fmt.Errorf("%w: unknown delete mode %q", domain.ErrInvalidPayload, mode)
}

// Approve marks an object as checked by a moderator.
func (s *ObjectService) Approve(ctx context.Context, id string) (domain.Record, error) {
	return s.store.UpdateObject(ctx, id, domain.Record{moderatorColumn: true})
}

// ResetOwner queues an owner for re-parsing.
func (s *ObjectService) ResetOwner(ctx context.Context, ownerID string) (domain.Record, error) {
	return s.store.UpdateRecord(ctx, ownersTable, "id", ownerID, domain.Record{"parsed": false})
}

/********** identifier backfill **********/

// Backfill writes the derived CIAN id and URL of rec when they are missing.
// applied is false when there was nothing to write.
func (s *ObjectService) Backfill(ctx context.Context, rec domain.Record) (res listing.Result, applied bool, err error) {
	res = listing.Reconcile(rec)
	if len(res.Patch) == 0 {
		return res, false, nil
	}
	id := listing.RecordKey(rec, s.store.IDColumn())
	if id == "" {
		observability.ObserveSyncPatch(sourceBackfill, "skipped")
		return res, false, fmt.Errorf("%w: record has no id", domain.ErrInvalidPayload)
	}
	if _, err := s.store.UpdateObject(ctx, id, domain.Record(res.Patch)); err != nil {
		observability.ObserveSyncPatch(sourceBackfill, "error")
		return res, false, fmt.Errorf("backfill %s: %w", id, err)
	}
	observability.ObserveSyncPatch(sourceBackfill, "applied")
	for _, e := range patchEntries(id, sourceBackfill, res.Patch) {
		if err := s.journal.RecordPatch(ctx, e); err != nil {
			log.Warn().Err(err).Str("object", id).Msg("journal_write_failed")
		}
	}
	return res, true, nil
}

// BackfillReport summarizes a BackfillAll run.
type BackfillReport struct {
	Scanned int `json:"scanned"`
	Patched int `json:"patched"`
	Failed  int `json:"failed"`
}

// BackfillAll reconciles up to limit objects, running at most s.workers
// PATCHes at a time. Per-object failures are counted, not returned.
func (s *ObjectService) BackfillAll(ctx context.Context, limit int) (BackfillReport, error) {
	recs, err := s.store.ListObjects(ctx, domain.ListQuery{Limit: clampLimit(limit)})
	if err != nil {
		return BackfillReport{}, err
	}

	var (
		mu  sync.Mutex
		rep = BackfillReport{Scanned: len(recs)}
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(int64(s.workers))
	)
	for _, rec := range recs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(rec domain.Record) {
			defer wg.Done()
			defer sem.Release(1)
			_, applied, err := s.Backfill(ctx, rec)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				rep.Failed++
				log.Warn().Err(err).Msg("backfill_failed")
			case applied:
				rep.Patched++
			}
		}(rec)
	}
	wg.Wait()

	return rep, ctx.Err()
}
