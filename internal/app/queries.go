package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/listing"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/summary"
)

const (
	defaultListLimit = 100
	maxListLimit     = 200
	ownersTable      = "owners"

	moderatorColumn  = "moderator"
	notModeratedExpr = "not.is.true"
)

// ObjectService is the single entry point the bot, the mini app API and the
// operator CLI use to read and change listings.
type ObjectService struct {
	store    domain.ObjectStore
	journal  domain.Journal
	validate *Validator
	workers  int
}

func NewObjectService(store domain.ObjectStore, journal domain.Journal, v *Validator, workers int) *ObjectService {
	if journal == nil {
		journal = domain.NopJournal{}
	}
	if workers <= 0 {
		workers = 4
	}
	return &ObjectService{store: store, journal: journal, validate: v, workers: workers}
}

func (s *ObjectService) Get(ctx context.Context, id string) (domain.Record, error) {
	rec, err := s.store.GetObject(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(rec) == 0 {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// Summary renders the chat card for one object.
func (s *ObjectService) Summary(ctx context.Context, id string) (string, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return summary.Render(rec), nil
}

// Search lists objects matching term (or all objects when term is blank).
func (s *ObjectService) Search(ctx context.Context, term string, limit int) ([]ListItem, error) {
	recs, err := s.store.ListObjects(ctx, domain.ListQuery{Search: term, Limit: clampLimit(limit)})
	if err != nil {
		return nil, err
	}
	return s.listItems(recs), nil
}

// ModerationQueue lists objects whose moderator flag is not set.
func (s *ObjectService) ModerationQueue(ctx context.Context, limit int) ([]ListItem, error) {
	recs, err := s.store.ListObjects(ctx, domain.ListQuery{
		Limit:   clampLimit(limit),
		Filters: map[string]string{moderatorColumn: notModeratedExpr},
	})
	if err != nil {
		return nil, err
	}
	return s.listItems(recs), nil
}

func (s *ObjectService) ModerationCount(ctx context.Context) (int, error) {
	return s.store.CountRecords(ctx, s.store.Table(), map[string]string{moderatorColumn: notModeratedExpr})
}

func (s *ObjectService) Owner(ctx context.Context, id string) (domain.Record, error) {
	rec, err := s.store.GetRecord(ctx, ownersTable, "id", id)
	if err != nil {
		return nil, err
	}
	if len(rec) == 0 {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// PublishCheck is the answer to "is this listing link one of ours".
type PublishCheck struct {
	Link   listing.PublishLink `json:"link"`
	Found  bool                `json:"found"`
	Object domain.Record       `json:"object,omitempty"`
}

// PublishCheck validates a marketplace link and looks up the object carrying
// its listing id.
func (s *ObjectService) PublishCheck(ctx context.Context, rawURL string) (PublishCheck, error) {
	link, err := listing.ParsePublishLink(rawURL)
	if err != nil {
		return PublishCheck{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	out := PublishCheck{Link: link}
	recs, err := s.store.ListObjects(ctx, domain.ListQuery{
		Limit:   1,
		Filters: map[string]string{listing.FieldCianID: "eq." + link.ID},
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return PublishCheck{}, err
	}
	if len(recs) > 0 {
		out.Found = true
		out.Object = recs[0]
	}
	return out, nil
}

// RecentPatches reads the sync journal, newest first.
func (s *ObjectService) RecentPatches(ctx context.Context, limit int) ([]domain.PatchEntry, error) {
	return s.journal.RecentPatches(ctx, limit)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}
