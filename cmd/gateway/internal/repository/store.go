package repository

import (
	"context"
)

// PriceStore is the gateway's view of the processor's Redis output:
// snapshot reads plus a refcounted pubsub feed.
type PriceStore interface {
	GetSnapshots(ctx context.Context, symbols []string) ([]string, error)
	SubscribeToFeed(ctx context.Context, symbol string) error
	UnsubscribeFromFeed(ctx context.Context, symbol string) error
	RunPubSub(ctx context.Context, onMessage func(symbol string, payload string))
	Close() error
}
