package app

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
)

// ShowingService forwards showing requests from the mini app to the team chat.
type ShowingService struct {
	objects  *ObjectService
	notifier domain.Notifier
	validate *Validator
	newID    func() string
}

func NewShowingService(objects *ObjectService, n domain.Notifier, v *Validator) *ShowingService {
	if n == nil {
		n = domain.NopNotifier{}
	}
	return &ShowingService{objects: objects, notifier: n, validate: v, newID: uuid.NewString}
}

type ShowingReceipt struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Request validates raw, renders the showing card and sends it. A missing
// object does not block the request; the card is sent without its details.
func (s *ShowingService) Request(ctx context.Context, raw []byte) (ShowingReceipt, error) {
	req, err := s.validate.ShowingRequest(raw)
	if err != nil {
		return ShowingReceipt{}, err
	}
	obj, err := s.objects.Get(ctx, req.ObjectID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return ShowingReceipt{}, err
	}
	if err := s.notifier.Notify(ctx, showingCard(req, obj)); err != nil {
		return ShowingReceipt{}, err
	}
	return ShowingReceipt{ID: s.newID(), Status: "sent"}, nil
}
