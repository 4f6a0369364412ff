package ipaymuwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const gatewayName = "ipaymu"

type callbackStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CallbackKey(gateway, trxID, status string) string
	Del(ctx context.Context, keys ...string) error
}

// Guard remembers which (transaction, status) callbacks were already handled.
type Guard struct {
	store callbackStore
	ttl   time.Duration
}

func NewGuard(store callbackStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("callback store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// CheckAndMark returns true when the callback was seen before.
func (g *Guard) CheckAndMark(ctx context.Context, ref, status string) (bool, error) {
	set, err := g.store.SetNX(ctx, g.store.CallbackKey(gatewayName, ref, status), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set callback key: %w", err)
	}
	return !set, nil
}

// Release forgets a mark so a retried delivery is processed again.
func (g *Guard) Release(ctx context.Context, ref, status string) error {
	return g.store.Del(ctx, g.store.CallbackKey(gatewayName, ref, status))
}
