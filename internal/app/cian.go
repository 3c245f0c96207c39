package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/observability"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/listing"
)

const (
	orderReportKey   = "cian:order-report"
	sourceStatusSync = "status-sync"
)

// CianService serves CIAN feed reports and pushes offer statuses into the
// store. Reads fall back to demo payloads while the API is not configured.
type CianService struct {
	api      domain.Marketplace
	store    domain.ObjectStore
	journal  domain.Journal
	notifier domain.Notifier
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewCianService(api domain.Marketplace, store domain.ObjectStore, j domain.Journal, n domain.Notifier, c domain.Cache, ttl time.Duration) *CianService {
	if j == nil {
		j = domain.NopJournal{}
	}
	if n == nil {
		n = domain.NopNotifier{}
	}
	return &CianService{api: api, store: store, journal: j, notifier: n, cache: c, cacheTTL: ttl}
}

func (s *CianService) OrderInfo(ctx context.Context) (map[string]any, error) {
	data, err := s.api.LastOrderInfo(ctx)
	if errors.Is(err, domain.ErrNotConfigured) {
		return demoOrderInfo(), nil
	}
	if err != nil {
		return nil, err
	}
	return live(data), nil
}

// OrderReport returns the feed order with offer statuses. Live reports are
// cached and their problem offers are posted to the team chat.
func (s *CianService) OrderReport(ctx context.Context) (map[string]any, error) {
	if s.cache != nil {
		var cached map[string]any
		if ok, _ := s.cache.Get(ctx, orderReportKey, &cached); ok {
			return cached, nil
		}
	}

	data, err := s.api.OrderReport(ctx)
	if errors.Is(err, domain.ErrNotConfigured) {
		return demoOrderReport(), nil
	}
	if err != nil {
		return nil, err
	}
	data = live(data)

	if s.cache != nil {
		_ = s.cache.Set(ctx, orderReportKey, data, int(s.cacheTTL.Seconds()))
	}
	if msg, ok := listing.ProblemDigest(listing.ExtractOffers(data)); ok {
		if err := s.notifier.Notify(ctx, msg); err != nil {
			log.Warn().Err(err).Msg("notify_cian_problems_failed")
		}
	}
	return data, nil
}

func (s *CianService) ImagesReport(ctx context.Context, page, pageSize int) (map[string]any, error) {
	data, err := s.api.ImagesReport(ctx, page, pageSize)
	if errors.Is(err, domain.ErrNotConfigured) {
		return demoImagesReport(), nil
	}
	if err != nil {
		return nil, err
	}
	return live(data), nil
}

// SyncResult is what one status sync pass did.
type SyncResult struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Missed  int `json:"missed"`
}

// SyncStatuses maps every offer's CIAN status onto the store. Offers without
// an id or with an unknown status are skipped; failed writes are journaled as
// misses and do not stop the pass.
func (s *CianService) SyncStatuses(ctx context.Context) (SyncResult, error) {
	report, err := s.api.OrderReport(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	var res SyncResult
	for _, o := range listing.ExtractOffers(report) {
		ref := o.Ref()
		status, ok := listing.MapExternalStatus(o.Status)
		if ref == "" || !ok {
			res.Skipped++
			continue
		}
		if _, err := s.store.UpdateObject(ctx, ref, domain.Record{"status": string(status)}); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Missed++
			observability.ObserveSyncPatch(sourceStatusSync, "missed")
			if jerr := s.journal.LogMiss(ctx, ref, domain.StatusOf(err), err.Error()); jerr != nil {
				log.Warn().Err(jerr).Str("object", ref).Msg("journal_write_failed")
			}
			continue
		}
		res.Updated++
		observability.ObserveSyncPatch(sourceStatusSync, "applied")
		for _, e := range patchEntries(ref, sourceStatusSync, map[string]any{"status": string(status)}) {
			if jerr := s.journal.RecordPatch(ctx, e); jerr != nil {
				log.Warn().Err(jerr).Str("object", ref).Msg("journal_write_failed")
			}
		}
	}

	if s.cache != nil {
		_ = s.cache.Del(ctx, orderReportKey)
	}
	return res, nil
}

/********** demo payloads **********/

func live(data map[string]any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	data["demo"] = false
	return data
}

func demoOrderInfo() map[string]any {
	return map[string]any{
		"operationId": "demo-op",
		"result": map[string]any{
			"activeFeedUrls":    []any{"https://demo-feed.example.com/feed.xml"},
			"hasImagesProblems": false,
			"hasOffersProblems": false,
			"lastFeedCheckDate": "2024-01-01T12:00:00Z",
			"lastProcessDate":   "2024-01-01T11:55:00Z",
			"orderId":           0,
		},
		"demo": true,
	}
}

func demoOrderReport() map[string]any {
	return map[string]any{
		"operationId": "demo-report",
		"result": map[string]any{
			"offers": []any{
				map[string]any{
					"externalId": "A101",
					"offerId":    101,
					"status":     "Refused",
					"errors":     []any{"Укажите корректный адрес"},
					"warnings":   []any{},
					"url":        "https://www.cian.ru/demo/A101",
				},
			},
		},
		"demo": true,
	}
}

func demoImagesReport() map[string]any {
	return map[string]any{
		"operationId": "demo-images",
		"result":      map[string]any{"items": []any{}},
		"demo":        true,
	}
}
