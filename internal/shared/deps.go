package shared

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/cian"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/memory"
	redisad "github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/redis"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/supabase"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/telegram"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/app"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
	mysqlrepo "github.com/hapjinhope/happiness-crm-miniapp/internal/storage/mysql"
)

// Deps is the service graph every binary builds from Config. Optional
// backends fall back to in-process versions: memory cache and state without
// REDIS_ADDR, no journal without MYSQL_DSN, no notifications without
// NOTIFY_BOT_TOKEN and NOTIFY_CHAT_ID.
type Deps struct {
	Store    *supabase.Client
	Cache    domain.Cache
	States   domain.StateStore
	Journal  domain.Journal
	Notifier domain.Notifier

	Objects  *app.ObjectService
	Cian     *app.CianService
	Showings *app.ShowingService

	closers []func() error
}

func Open(ctx context.Context, cfg Config) (*Deps, error) {
	d := &Deps{
		Store:    supabase.New(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseTable, cfg.ObjectIDColumn),
		Journal:  domain.NopJournal{},
		Notifier: domain.NopNotifier{},
	}

	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rc.Ping(pctx).Err()
		cancel()
		if err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		d.Cache = redisad.NewFromClient(rc)
		d.States = redisad.NewStateStore(rc, cfg.StateTTL)
		d.closers = append(d.closers, rc.Close)
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis connection ok")
	} else {
		d.Cache = memory.NewCache()
		d.States = memory.NewStateStore()
	}

	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("sql.Open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			d.Close()
			return nil, fmt.Errorf("db.Ping: %w", err)
		}
		d.Journal = mysqlrepo.New(db)
		d.closers = append(d.closers, db.Close)
		log.Info().Msg("journal database connection ok")
	}

	if cfg.NotifyToken != "" && cfg.NotifyChatID != 0 {
		api, err := telegram.Dial(cfg.NotifyToken, cfg.TelegramProxy, cfg.TelegramTimeout)
		if err != nil {
			// notifications are best effort
			log.Warn().Err(err).Msg("notifier disabled")
		} else {
			d.Notifier = telegram.NewNotifier(api, cfg.NotifyChatID, cfg.NotifyThreadID)
		}
	}

	v, err := app.NewValidator()
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Objects = app.NewObjectService(d.Store, d.Journal, v, cfg.SyncWorkers)
	d.Cian = app.NewCianService(cian.New(cfg.CianBase, cfg.CianToken, cfg.CianRPS), d.Store, d.Journal, d.Notifier, d.Cache, cfg.CacheTTL)
	d.Showings = app.NewShowingService(d.Objects, d.Notifier, v)
	return d, nil
}

// Close releases connections in reverse order of opening.
func (d *Deps) Close() {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	d.closers = nil
	if err := errors.Join(errs...); err != nil {
		log.Warn().Err(err).Msg("close dependencies")
	}
}
