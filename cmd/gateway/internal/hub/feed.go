package hub

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

// PriceUpdater is the write side of the gateway market.
type PriceUpdater interface {
	UpdateStock(symbol string, price float64)
}

// Feed applies ticks arriving from Redis to the gateway market, which in
// turn notifies the hub.
type Feed struct {
	market PriceUpdater
	logger *zap.Logger
}

func NewFeed(m PriceUpdater, logger *zap.Logger) *Feed {
	return &Feed{market: m, logger: logger}
}

// OnMessage is the RunPubSub callback.
func (f *Feed) OnMessage(symbol string, payload string) {
	u, ok := f.decode(payload)
	if !ok {
		return
	}
	if u.Symbol != symbol {
		f.logger.Warn("Tick symbol does not match channel", zap.String("channel_symbol", symbol), zap.String("tick_symbol", u.Symbol))
		return
	}
	f.market.UpdateStock(u.Symbol, u.Price)
}

// Hydrate loads the stored snapshot of each symbol into the market and
// returns how many were applied.
func (f *Feed) Hydrate(ctx context.Context, store repository.PriceStore, symbols []string) (int, error) {
	snapshots, err := store.GetSnapshots(ctx, symbols)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, snap := range snapshots {
		u, ok := f.decode(snap)
		if !ok {
			continue
		}
		f.market.UpdateStock(u.Symbol, u.Price)
		applied++
	}
	return applied, nil
}

func (f *Feed) decode(payload string) (models.StockUpdate, bool) {
	var u models.StockUpdate
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		f.logger.Warn("Dropping malformed tick", zap.Error(err))
		return u, false
	}
	if err := u.Validate(); err != nil {
		f.logger.Warn("Dropping invalid tick", zap.String("symbol", u.Symbol), zap.Error(err))
		return u, false
	}
	return u, true
}
