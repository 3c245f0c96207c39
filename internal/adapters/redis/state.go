package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
)

const statePrefix = "crm:state:"

// StateStore keeps bot conversation state per Telegram user. Entries expire
// after ttl so an abandoned edit does not capture a later message.
type StateStore struct {
	c   *redis.Client
	ttl time.Duration
}

func NewStateStore(c *redis.Client, ttl time.Duration) *StateStore {
	return &StateStore{c: c, ttl: ttl}
}

func stateKey(userID int64) string { return statePrefix + strconv.FormatInt(userID, 10) }

func (s *StateStore) Get(ctx context.Context, userID int64) (domain.ConversationState, error) {
	b, err := s.c.Get(ctx, stateKey(userID)).Bytes()
	return decodeState(b, err)
}

func (s *StateStore) Set(ctx context.Context, userID int64, st domain.ConversationState) error {
	if st.Idle() {
		return s.Clear(ctx, userID)
	}
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("state encode: %w", err)
	}
	return s.c.Set(ctx, stateKey(userID), b, s.ttl).Err()
}

func (s *StateStore) Clear(ctx context.Context, userID int64) error {
	return s.c.Del(ctx, stateKey(userID)).Err()
}

// Take reads and deletes the state in one GETDEL.
func (s *StateStore) Take(ctx context.Context, userID int64) (domain.ConversationState, error) {
	b, err := s.c.GetDel(ctx, stateKey(userID)).Bytes()
	return decodeState(b, err)
}

func decodeState(b []byte, err error) (domain.ConversationState, error) {
	if errors.Is(err, redis.Nil) {
		return domain.ConversationState{}, nil
	}
	if err != nil {
		return domain.ConversationState{}, err
	}
	var st domain.ConversationState
	if err := json.Unmarshal(b, &st); err != nil {
		return domain.ConversationState{}, fmt.Errorf("state decode: %w", err)
	}
	return st, nil
}
