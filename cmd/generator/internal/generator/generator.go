package generator

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

const (
	stepRange = 0.01 // width of the step; a tick moves the price by at most ±0.5%
	minPrice  = 0.01
)

// StockGenerator walks the price of each symbol randomly and writes every
// step to Kafka, keyed by symbol so a symbol stays on one partition.
type StockGenerator struct {
	logger   *zap.Logger
	writer   KafkaWriter
	symbols  []string
	prices   map[string]float64
	rand     Rand
	clock    Clock
	interval time.Duration
	seq      map[string]int64
}

func NewStockGenerator(
	logger *zap.Logger,
	writer KafkaWriter,
	openingPrices map[string]float64,
	interval time.Duration,
	rnd Rand,
	clock Clock,
) *StockGenerator {
	symbols := make([]string, 0, len(openingPrices))
	prices := make(map[string]float64, len(openingPrices))
	for sym, p := range openingPrices {
		symbols = append(symbols, sym)
		prices[sym] = p
	}
	sort.Strings(symbols)

	return &StockGenerator{
		logger:   logger,
		writer:   writer,
		symbols:  symbols,
		prices:   prices,
		rand:     rnd,
		clock:    clock,
		interval: interval,
		seq:      make(map[string]int64),
	}
}

// Next produces the following tick without sending it.
func (sg *StockGenerator) Next() models.StockUpdate {
	symbol := sg.symbols[sg.rand.Intn(len(sg.symbols))]

	step := (sg.rand.Float64() - 0.5) * stepRange
	price := math.Round(sg.prices[symbol]*(1+step)*100) / 100
	if price < minPrice {
		price = minPrice
	}
	sg.prices[symbol] = price
	sg.seq[symbol]++

	return models.StockUpdate{
		Symbol:    symbol,
		Price:     price,
		Timestamp: sg.clock.Now().UnixMicro(),
		SeqID:     sg.seq[symbol],
	}
}

func (sg *StockGenerator) Run(ctx context.Context) {
	sg.logger.Info("Generator Started", zap.Strings("symbols", sg.symbols))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if len(sg.symbols) == 0 {
			sg.clock.Sleep(time.Second)
			continue
		}

		update := sg.Next()
		payload, err := json.Marshal(update)
		if err != nil {
			sg.logger.Error("JSON Marshal Error", zap.Error(err))
			continue
		}

		err = sg.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(update.Symbol),
			Value: payload,
		})
		if err != nil {
			sg.logger.Error("Kafka Write Error", zap.Error(err))
		} else {
			sg.logger.Debug("Sent update", zap.String("symbol", update.Symbol), zap.Float64("price", update.Price))
		}

		sg.clock.Sleep(sg.interval)
	}
}
