// Command ticker runs the stock market observer scenario once and prints
// every notification to stdout.
package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/pkg/config"
	"github.com/shubham-shewale/stock-ticker/pkg/market"
)

func main() {
	logger, err := config.NewLogger(config.LoggerConfig{Level: "info", Encoding: "console"})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	run(os.Stdout, logger)
}

func run(out io.Writer, logger *zap.Logger) *market.Market {
	m := market.New(logger)
	m.AddStock(market.Stock{Symbol: "AAPL", Price: 150.50})

	john := market.NewConsoleObserver("John", out)
	emily := market.NewConsoleObserver("Emily", out)
	m.AddObserver(john)
	m.AddObserver(emily)

	m.UpdateStock("AAPL", 155.20)

	m.RemoveObserver(emily)
	m.UpdateStock("AAPL", 156.00)

	// Never listed, so nobody hears about it.
	m.UpdateStock("GOOGL", 2530.40)

	for _, s := range m.Stocks() {
		logger.Info("Closing price", zap.String("symbol", s.Symbol), zap.Float64("price", s.Price))
	}
	return m
}
