package domain

import "context"

type Step string

const (
	StepIdle              Step = ""
	StepAwaitingObjectID  Step = "awaiting_object_id"
	StepAwaitingEditInput Step = "awaiting_edit_payload"
)

// ConversationState is what a chat user is in the middle of.
// ObjectID is set only for StepAwaitingEditInput.
type ConversationState struct {
	Step     Step   `json:"state"`
	ObjectID string `json:"object_id,omitempty"`
}

func (s ConversationState) Idle() bool { return s.Step == StepIdle }

// StateStore keeps one ConversationState per user. Every method is atomic
// per user key; no ordering is promised across users.
type StateStore interface {
	Get(ctx context.Context, userID int64) (ConversationState, error)
	Set(ctx context.Context, userID int64, s ConversationState) error
	Clear(ctx context.Context, userID int64) error
	// Take returns the current state and resets it to idle in one step.
	Take(ctx context.Context, userID int64) (ConversationState, error)
}
