package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/app"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/summary"
)

const (
	MenuLabel = "🔍 Найти объект"

	cbRequestID     = "request_id"
	cbEdit          = "edit"
	cbDelete        = "delete"
	cbDeleteConfirm = "delete_confirm"
	cbDeleteCancel  = "delete_cancel"

	txtStart         = "Привет! Нажми «🔍 Найти объект», введи /object или просто отправь ID объекта."
	txtMenuHint      = "Меню всегда под рукой на клавиатуре ниже 👇"
	txtAskID         = "✏️ Отправь ID объекта (например, external_id из Supabase)."
	txtNotFound      = "Не нашёл объект. Убедись, что ID существует и попробуй снова."
	txtGone          = "Объект больше не существует."
	txtNoWebApp      = "URL мини-приложения не настроен."
	txtOpenWebApp    = "Открой мини-приложение, чтобы просмотреть объекты списком:"
	txtWebAppButton  = "Открыть HAPPINESS CRM"
	txtUpdatedPrefix = "Обновлено:\n"
)

// Objects is what the bot does to listings.
type Objects interface {
	Get(ctx context.Context, id string) (domain.Record, error)
	UpdateJSON(ctx context.Context, id string, raw []byte) (domain.Record, error)
	Delete(ctx context.Context, id string, mode app.DeleteMode) error
}

type Dispatcher struct {
	msg       Messenger
	objects   Objects
	states    domain.StateStore
	webAppURL string
}

func NewDispatcher(m Messenger, objects Objects, states domain.StateStore, webAppURL string) *Dispatcher {
	return &Dispatcher{msg: m, objects: objects, states: states, webAppURL: webAppURL}
}

// Handle routes one update. The returned error is a transport or state store
// failure; problems the user can fix are answered in chat.
func (d *Dispatcher) Handle(ctx context.Context, u Update) error {
	switch u.Kind() {
	case "callback":
		return d.callback(ctx, u)
	case "command":
		return d.command(ctx, u)
	}
	if strings.TrimSpace(u.Text) == "" {
		return nil
	}
	return d.text(ctx, u)
}

func (d *Dispatcher) command(ctx context.Context, u Update) error {
	switch u.Command {
	case "start", "menu":
		if err := d.msg.Send(ctx, u.ChatID, Reply{
			Text:   txtStart,
			Inline: [][]Button{{{Text: MenuLabel, Data: cbRequestID}}},
		}); err != nil {
			return err
		}
		return d.msg.Send(ctx, u.ChatID, Reply{Text: txtMenuHint, Menu: true})
	case "app":
		if d.webAppURL == "" {
			return d.msg.Send(ctx, u.ChatID, Reply{Text: txtNoWebApp})
		}
		return d.msg.Send(ctx, u.ChatID, Reply{
			Text:   txtOpenWebApp,
			Inline: [][]Button{{{Text: txtWebAppButton, URL: d.webAppURL}}},
		})
	case "id", "o", "object":
		return d.askForID(ctx, u.UserID, u.ChatID)
	}
	return nil
}

func (d *Dispatcher) askForID(ctx context.Context, userID, chatID int64) error {
	if err := d.states.Set(ctx, userID, domain.ConversationState{Step: domain.StepAwaitingObjectID}); err != nil {
		return err
	}
	return d.msg.Send(ctx, chatID, Reply{Text: txtAskID})
}

func (d *Dispatcher) text(ctx context.Context, u Update) error {
	text := strings.TrimSpace(u.Text)
	if text == MenuLabel {
		return d.askForID(ctx, u.UserID, u.ChatID)
	}

	// an awaiting edit stays in place until the update settles
	st, err := d.states.Get(ctx, u.UserID)
	if err != nil {
		return err
	}
	if st.Step != domain.StepAwaitingEditInput {
		if st, err = d.states.Take(ctx, u.UserID); err != nil {
			return err
		}
	}
	if st.Step == domain.StepAwaitingEditInput {
		return d.applyEdit(ctx, u, st.ObjectID, text)
	}
	return d.lookup(ctx, u.ChatID, text)
}

func (d *Dispatcher) lookup(ctx context.Context, chatID int64, id string) error {
	rec, err := d.objects.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return d.msg.Send(ctx, chatID, Reply{Text: txtNotFound})
	case err != nil:
		return d.msg.Send(ctx, chatID, Reply{Text: fmt.Sprintf("Ошибка запроса: %v", err)})
	}
	return d.msg.Send(ctx, chatID, Reply{Text: summary.Render(rec), HTML: true, Inline: objectButtons(id)})
}

func (d *Dispatcher) applyEdit(ctx context.Context, u Update, id, payload string) error {
	rec, err := d.objects.UpdateJSON(ctx, id, []byte(payload))
	if errors.Is(err, domain.ErrInvalidPayload) {
		// keep waiting for a payload for the same object
		if serr := d.states.Set(ctx, u.UserID, domain.ConversationState{Step: domain.StepAwaitingEditInput, ObjectID: id}); serr != nil {
			return serr
		}
	} else if cerr := d.states.Clear(ctx, u.UserID); cerr != nil {
		return cerr
	}
	switch {
	case errors.Is(err, domain.ErrInvalidPayload):
		return d.msg.Send(ctx, u.ChatID, Reply{Text: fmt.Sprintf("Не смог прочитать JSON: %s. Попробуй ещё раз.", payloadProblem(err))})
	case errors.Is(err, domain.ErrNotFound):
		return d.msg.Send(ctx, u.ChatID, Reply{Text: fmt.Sprintf("Объект %s не найден.", id)})
	case err != nil:
		return d.msg.Send(ctx, u.ChatID, Reply{Text: fmt.Sprintf("Ошибка обновления: %v", err)})
	}
	return d.msg.Send(ctx, u.ChatID, Reply{Text: txtUpdatedPrefix + summary.Render(rec), HTML: true})
}

func (d *Dispatcher) callback(ctx context.Context, u Update) error {
	if err := d.msg.Answer(ctx, u.CallbackID); err != nil {
		return err
	}
	if u.Data == cbRequestID {
		return d.askForID(ctx, u.UserID, u.ChatID)
	}

	action, id, ok := strings.Cut(u.Data, ":")
	if !ok || id == "" {
		return nil
	}
	switch action {
	case cbEdit:
		if err := d.states.Set(ctx, u.UserID, domain.ConversationState{Step: domain.StepAwaitingEditInput, ObjectID: id}); err != nil {
			return err
		}
		return d.msg.Edit(ctx, u.ChatID, u.MessageID, Reply{Text: fmt.Sprintf("Отправь JSON с полями для обновления объекта %s.", id)})

	case cbDelete:
		return d.msg.EditButtons(ctx, u.ChatID, u.MessageID, [][]Button{
			{{Text: "Да, удалить", Data: cbDeleteConfirm + ":" + id}},
			{{Text: "Отмена", Data: cbDeleteCancel + ":" + id}},
		})

	case cbDeleteConfirm:
		var text string
		switch err := d.objects.Delete(ctx, id, app.DeleteRemove); {
		case err == nil:
			text = fmt.Sprintf("Объект %s удалён.", id)
		case errors.Is(err, domain.ErrNotFound):
			text = fmt.Sprintf("Объект %s не найден.", id)
		default:
			text = fmt.Sprintf("Ошибка удаления: %v", err)
		}
		return d.msg.Edit(ctx, u.ChatID, u.MessageID, Reply{Text: text})

	case cbDeleteCancel:
		rec, err := d.objects.Get(ctx, id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return d.msg.Edit(ctx, u.ChatID, u.MessageID, Reply{Text: txtGone})
		case err != nil:
			return d.msg.Edit(ctx, u.ChatID, u.MessageID, Reply{Text: fmt.Sprintf("Ошибка запроса: %v", err)})
		}
		return d.msg.Edit(ctx, u.ChatID, u.MessageID, Reply{Text: summary.Render(rec), HTML: true, Inline: objectButtons(id)})
	}
	return nil
}

func objectButtons(id string) [][]Button {
	return [][]Button{{
		{Text: "Редактировать", Data: cbEdit + ":" + id},
		{Text: "Удалить", Data: cbDelete + ":" + id},
	}}
}

func payloadProblem(err error) string {
	return strings.TrimPrefix(err.Error(), domain.ErrInvalidPayload.Error()+": ")
}
