package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/observability"
)

// Dial connects to the Bot API, optionally through an HTTP(S) or SOCKS5 proxy.
// connectTimeout bounds dialing only; long polls stay open.
func Dial(token, proxyURL string, connectTimeout time.Duration) (*tgbotapi.BotAPI, error) {
	return DialEndpoint(token, tgbotapi.APIEndpoint, proxyURL, connectTimeout)
}

// DialEndpoint is Dial against a custom endpoint template ("%s" token, "%s" method).
func DialEndpoint(token, endpoint, proxyURL string, connectTimeout time.Duration) (*tgbotapi.BotAPI, error) {
	hc, err := newHTTPClient(proxyURL, connectTimeout)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, hc)
	observability.ObserveExternal("telegram", "getMe", statusOf(err), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	return api, nil
}

func newHTTPClient(proxyURL string, connectTimeout time.Duration) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if connectTimeout > 0 {
		tr.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
		tr.TLSHandshakeTimeout = connectTimeout
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("telegram: proxy url: %w", err)
		}
		tr.Proxy = http.ProxyURL(u)
	}
	return &http.Client{Transport: tr}, nil
}

// BotMessenger implements Messenger on top of the Bot API client.
type BotMessenger struct {
	api *tgbotapi.BotAPI
}

func NewMessenger(api *tgbotapi.BotAPI) *BotMessenger { return &BotMessenger{api: api} }

func (m *BotMessenger) Send(_ context.Context, chatID int64, r Reply) error {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	if r.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	switch {
	case len(r.Inline) > 0:
		msg.ReplyMarkup = inlineMarkup(r.Inline)
	case r.Menu:
		msg.ReplyMarkup = menuKeyboard()
	}
	return m.send("sendMessage", msg)
}

func (m *BotMessenger) Edit(_ context.Context, chatID int64, messageID int, r Reply) error {
	cfg := tgbotapi.NewEditMessageText(chatID, messageID, r.Text)
	if r.HTML {
		cfg.ParseMode = tgbotapi.ModeHTML
	}
	if len(r.Inline) > 0 {
		kb := inlineMarkup(r.Inline)
		cfg.ReplyMarkup = &kb
	}
	return m.send("editMessageText", cfg)
}

func (m *BotMessenger) EditButtons(_ context.Context, chatID int64, messageID int, rows [][]Button) error {
	return m.send("editMessageReplyMarkup", tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, inlineMarkup(rows)))
}

func (m *BotMessenger) Answer(_ context.Context, callbackID string) error {
	return m.send("answerCallbackQuery", tgbotapi.NewCallback(callbackID, ""))
}

func (m *BotMessenger) send(method string, c tgbotapi.Chattable) error {
	start := time.Now()
	_, err := m.api.Request(c)
	observability.ObserveExternal("telegram", method, statusOf(err), time.Since(start))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	return nil
}

func inlineMarkup(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		out = append(out, btns)
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

func menuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(MenuLabel)))
	kb.ResizeKeyboard = true
	return kb
}

// fromAPI converts a Bot API update. ok is false for updates the bot ignores.
func fromAPI(u tgbotapi.Update) (Update, bool) {
	if cq := u.CallbackQuery; cq != nil {
		out := Update{CallbackID: cq.ID, Data: cq.Data}
		if cq.From != nil {
			out.UserID = cq.From.ID
		}
		if cq.Message != nil && cq.Message.Chat != nil {
			out.ChatID = cq.Message.Chat.ID
			out.MessageID = cq.Message.MessageID
		}
		return out, true
	}

	m := u.Message
	if m == nil || m.Chat == nil || m.Text == "" {
		return Update{}, false
	}
	out := Update{ChatID: m.Chat.ID, MessageID: m.MessageID}
	if m.From != nil {
		out.UserID = m.From.ID
	} else {
		out.UserID = m.Chat.ID
	}
	if m.IsCommand() {
		out.Command = m.Command()
	} else {
		out.Text = m.Text
	}
	return out, true
}

// statusOf maps a Bot API error onto the HTTP-ish code used in metrics.
func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return apiErr.Code
	}
	return 0
}
