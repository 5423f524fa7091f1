package models

import (
	"errors"
	"math"
	"strings"
)

// StockUpdate is a single market tick for a stock symbol, as carried on
// Kafka and in Redis.
type StockUpdate struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix micro
	SeqID     int64   `json:"seq_id"`    // monotonic counter per symbol
}

var (
	ErrMissingSymbol = errors.New("tick has no symbol")
	ErrInvalidPrice  = errors.New("tick price must be a positive finite number")
)

// Validate rejects ticks that can never be applied to a listed stock.
func (u StockUpdate) Validate() error {
	if u.Symbol == "" {
		return ErrMissingSymbol
	}
	if u.Price <= 0 || math.IsNaN(u.Price) || math.IsInf(u.Price, 0) {
		return ErrInvalidPrice
	}
	return nil
}

const (
	snapshotKeyPrefix  = "stock:"
	priceChannelPrefix = "prices."
)

// SnapshotKey is the Redis key holding the latest tick for symbol.
func SnapshotKey(symbol string) string { return snapshotKeyPrefix + symbol }

// PriceChannel is the Redis pubsub channel carrying ticks for symbol.
func PriceChannel(symbol string) string { return priceChannelPrefix + symbol }

// SymbolFromChannel is the inverse of PriceChannel.
func SymbolFromChannel(channel string) (string, bool) {
	sym, ok := strings.CutPrefix(channel, priceChannelPrefix)
	if !ok || sym == "" {
		return "", false
	}
	return sym, true
}
