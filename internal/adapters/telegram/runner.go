package telegram

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/observability"
)

const pollTimeout = 30

var botCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Приветствие и меню"},
	{Command: "menu", Description: "Быстро открыть меню"},
	{Command: "object", Description: "Найти объект по ID"},
	{Command: "app", Description: "Открыть мини-приложение"},
}

type Handler interface {
	Handle(ctx context.Context, u Update) error
}

// Run registers the command list and long-polls until ctx is done.
func Run(ctx context.Context, api *tgbotapi.BotAPI, h Handler, workers int) error {
	if _, err := api.Request(tgbotapi.NewSetMyCommands(botCommands...)); err != nil {
		log.Warn().Err(err).Msg("set_my_commands_failed")
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	raw := api.GetUpdatesChan(cfg)
	defer api.StopReceivingUpdates()

	updates := make(chan Update)
	go func() {
		defer close(updates)
		for {
			select {
			case <-ctx.Done():
				return
			case tu, ok := <-raw:
				if !ok {
					return
				}
				u, ok := fromAPI(tu)
				if !ok {
					continue
				}
				select {
				case updates <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return Serve(ctx, h, updates, workers)
}

// Serve hands updates to h with at most workers in flight and returns once
// updates is closed or ctx is done and every started handler has finished.
func Serve(ctx context.Context, h Handler, updates <-chan Update, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			wg.Add(1)
			go func(u Update) {
				defer wg.Done()
				defer sem.Release(1)
				start := time.Now()
				err := h.Handle(ctx, u)
				observability.ObserveBotUpdate(u.Kind(), err)
				ev := log.Info()
				if err != nil {
					ev = log.Error().Err(err)
				}
				ev.Int64("user", u.UserID).
					Int64("chat", u.ChatID).
					Str("kind", u.Kind()).
					Dur("took", time.Since(start)).
					Msg("bot_update")
			}(u)
		}
	}
}
