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
	"github.com/hapjinhope/happiness-crm-miniapp/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	if missing := cfg.Missing("SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY"); len(missing) > 0 {
		log.Fatal().Strs("missing", missing).Msg("required configuration is not set")
	}

	observability.Serve(cfg.MetricsAddr)

	deps, err := shared.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("dependencies failed")
	}
	defer deps.Close()

	// http
	srv := server.New(server.Options{CORSOrigins: cfg.CORSOrigins})
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Objects:  deps.Objects,
		Cian:     deps.Cian,
		Showings: deps.Showings,
	})
	srv.MountWebApp(cfg.WebAppDir)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(sctx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
