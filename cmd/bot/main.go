package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/http_server"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/observability"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/telegram"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)

	if missing := cfg.Missing("TELEGRAM_BOT_TOKEN", "SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY"); len(missing) > 0 {
		log.Fatal().Strs("missing", missing).Msg("required configuration is not set")
	}

	observability.Serve(cfg.MetricsAddr)

	deps, err := shared.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("dependencies failed")
	}
	defer deps.Close()

	if cfg.WebAppAutostart {
		go serveWebApp(ctx, cfg, deps)
	}

	api, err := telegram.Dial(cfg.TelegramToken, cfg.TelegramProxy, cfg.TelegramTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram connect failed")
	}
	log.Info().Str("bot", api.Self.UserName).Int("workers", cfg.BotWorkers).Msg("bot starting")

	d := telegram.NewDispatcher(telegram.NewMessenger(api), deps.Objects, deps.States, cfg.WebAppURL)
	if err := telegram.Run(ctx, api, d, cfg.BotWorkers); err != nil {
		log.Error().Err(err).Msg("bot stopped with error")
		return
	}
	log.Info().Msg("bot stopped")
}

// serveWebApp runs the mini app and its API next to the bot.
func serveWebApp(ctx context.Context, cfg shared.Config, deps *shared.Deps) {
	srv := server.New(server.Options{CORSOrigins: cfg.CORSOrigins})
	srv.MountHandlers(&server.Handlers{Objects: deps.Objects, Cian: deps.Cian, Showings: deps.Showings})
	srv.MountWebApp(cfg.WebAppDir)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(sctx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("dir", cfg.WebAppDir).Msg("webapp listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("webapp server failed")
	}
}
