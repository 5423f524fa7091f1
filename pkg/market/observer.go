package market

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// ConsoleObserver prints one line per price change to out.
type ConsoleObserver struct {
	name string
	out  io.Writer
}

func NewConsoleObserver(name string, out io.Writer) *ConsoleObserver {
	return &ConsoleObserver{name: name, out: out}
}

func (c *ConsoleObserver) Name() string { return c.name }

func (c *ConsoleObserver) Update(stock Stock) {
	fmt.Fprintf(c.out, "[%s] Stock %s price updated: $%.2f\n", c.name, stock.Symbol, stock.Price)
}

// LogObserver records price changes through a zap logger.
type LogObserver struct {
	name   string
	logger *zap.Logger
}

func NewLogObserver(name string, logger *zap.Logger) *LogObserver {
	return &LogObserver{name: name, logger: logger}
}

func (l *LogObserver) Name() string { return l.name }

func (l *LogObserver) Update(stock Stock) {
	l.logger.Info("Stock price updated",
		zap.String("observer", l.name),
		zap.String("symbol", stock.Symbol),
		zap.Float64("price", stock.Price),
	)
}
