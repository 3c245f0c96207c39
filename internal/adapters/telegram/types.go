// Package telegram is the chat front end: a transport-neutral dispatcher for
// the object lookup/edit/delete flows and its Bot API bindings.
package telegram

import "context"

// Button is an inline keyboard button. Exactly one of Data and URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Reply is an outgoing message. Inline takes precedence over Menu.
type Reply struct {
	Text   string
	HTML   bool
	Inline [][]Button
	Menu   bool // attach the persistent "find object" reply keyboard
}

// Messenger is the slice of the Bot API the dispatcher needs.
type Messenger interface {
	Send(ctx context.Context, chatID int64, r Reply) error
	Edit(ctx context.Context, chatID int64, messageID int, r Reply) error
	EditButtons(ctx context.Context, chatID int64, messageID int, rows [][]Button) error
	Answer(ctx context.Context, callbackID string) error
}

// Update is one inbound event. CallbackID is set for button presses, Command
// (without the slash) for commands and Text for everything else.
type Update struct {
	UserID    int64
	ChatID    int64
	MessageID int

	Command    string
	Text       string
	CallbackID string
	Data       string
}

func (u Update) Kind() string {
	switch {
	case u.CallbackID != "":
		return "callback"
	case u.Command != "":
		return "command"
	default:
		return "text"
	}
}
