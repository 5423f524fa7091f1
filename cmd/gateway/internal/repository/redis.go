package repository

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

var _ PriceStore = (*RedisStore)(nil)

type RedisStore struct {
	client *redis.Client
	pubsub *redis.PubSub
	mu     sync.Mutex // serializes SUBSCRIBE/UNSUBSCRIBE on the shared connection
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		pubsub: client.Subscribe(context.Background()),
	}
}

// GetSnapshots fetches the latest stored tick for each symbol (MGET).
// Symbols without a snapshot are skipped.
func (r *RedisStore) GetSnapshots(ctx context.Context, symbols []string) ([]string, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = models.SnapshotKey(sym)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var snapshots []string
	for _, val := range results {
		if payload, ok := val.(string); ok && payload != "" {
			snapshots = append(snapshots, payload)
		}
	}
	return snapshots, nil
}

func (r *RedisStore) SubscribeToFeed(ctx context.Context, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.pubsub.Subscribe(ctx, models.PriceChannel(symbol))
}

func (r *RedisStore) UnsubscribeFromFeed(ctx context.Context, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.pubsub.Unsubscribe(ctx, models.PriceChannel(symbol))
}

// RunPubSub delivers every feed message to onMessage until ctx is done or
// the store is closed.
func (r *RedisStore) RunPubSub(ctx context.Context, onMessage func(symbol string, payload string)) {
	ch := r.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			sym, ok := models.SymbolFromChannel(msg.Channel)
			if !ok {
				continue
			}
			onMessage(sym, msg.Payload)
		}
	}
}

func (r *RedisStore) Close() error {
	if err := r.pubsub.Close(); err != nil {
		return err
	}
	return r.client.Close()
}
