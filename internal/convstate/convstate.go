package convstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when the account has no active conversation state
// (never set, expired or cleared).
var ErrNotFound = errors.New("conversation state not found")

// State is one step of a multi-step user flow (recharge screenshot wait,
// redeem code wait, sell number wait). It lives in Redis with a TTL so that
// flows survive process restarts, work across instances and never get stuck.
type State struct {
	Step string            `json:"step"`
	Data map[string]string `json:"data,omitempty"`
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func key(accountID int64) string {
	return fmt.Sprintf("convstate:%d", accountID)
}

// Set replaces the account's conversation state and restarts its TTL
func (s *Store) Set(ctx context.Context, accountID int64, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := s.client.Set(ctx, key(accountID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, accountID int64) (State, error) {
	var state State

	data, err := s.client.Get(ctx, key(accountID)).Bytes()
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil):
		return state, ErrNotFound
	default:
		return state, fmt.Errorf("redis error: %w", err)
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("unmarshal state: %w", err)
	}

	return state, nil
}

// Clear drops the state; clearing an absent state is not an error
func (s *Store) Clear(ctx context.Context, accountID int64) error {
	if err := s.client.Del(ctx, key(accountID)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	return nil
}

// NoOp is a stateless store used when no Redis is configured: every account
// always looks like it has no active conversation.
type NoOp struct{}

func (NoOp) Set(context.Context, int64, State) error { return nil }

func (NoOp) Get(context.Context, int64) (State, error) { return State{}, ErrNotFound }

func (NoOp) Clear(context.Context, int64) error { return nil }
