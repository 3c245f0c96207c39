package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/observability"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/shared"
)

// backfillLimit is the most objects one pass reconciles.
const backfillLimit = 200

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	if missing := cfg.Missing("SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY"); len(missing) > 0 {
		log.Fatal().Strs("missing", missing).Msg("required configuration is not set")
	}

	log.Info().
		Str("cian", cfg.CianBase).
		Int("workers", cfg.SyncWorkers).
		Dur("interval", cfg.SyncInterval).
		Msg("syncer starting")

	observability.Serve(cfg.MetricsAddr)

	deps, err := shared.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("dependencies failed")
	}
	defer deps.Close()

	runOnce(ctx, deps)
	if cfg.SyncInterval <= 0 {
		log.Info().Msg("sync completed")
		return
	}

	t := time.NewTicker(cfg.SyncInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("syncer stopped")
			return
		case <-t.C:
			runOnce(ctx, deps)
		}
	}
}

// runOnce maps CIAN statuses onto the store, then backfills missing CIAN ids.
// A failing step is logged and does not stop the other.
func runOnce(ctx context.Context, deps *shared.Deps) {
	start := time.Now()

	res, err := deps.Cian.SyncStatuses(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("status sync failed")
	} else {
		log.Info().Int("updated", res.Updated).Int("skipped", res.Skipped).Int("missed", res.Missed).Msg("status sync ok")
	}

	rep, err := deps.Objects.BackfillAll(ctx, backfillLimit)
	if err != nil {
		log.Warn().Err(err).Msg("backfill failed")
	}
	log.Info().
		Int("scanned", rep.Scanned).
		Int("patched", rep.Patched).
		Int("failed", rep.Failed).
		Dur("took", time.Since(start)).
		Msg("sync pass done")
}
