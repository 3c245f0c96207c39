package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/observability"
)

// Notifier posts HTML messages to the team chat, optionally into a forum topic.
type Notifier struct {
	api      *tgbotapi.BotAPI
	chatID   int64
	threadID int
}

func NewNotifier(api *tgbotapi.BotAPI, chatID int64, threadID int) *Notifier {
	return &Notifier{api: api, chatID: chatID, threadID: threadID}
}

func (n *Notifier) Notify(ctx context.Context, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// message_thread_id is not modelled by the client's MessageConfig
	p := tgbotapi.Params{}
	p.AddNonZero64("chat_id", n.chatID)
	p["text"] = html
	p["parse_mode"] = tgbotapi.ModeHTML
	p.AddNonZero("message_thread_id", n.threadID)

	start := time.Now()
	_, err := n.api.MakeRequest("sendMessage", p)
	observability.ObserveExternal("telegram", "notify", statusOf(err), time.Since(start))
	if err != nil {
		return fmt.Errorf("telegram notify: %w", err)
	}
	return nil
}
