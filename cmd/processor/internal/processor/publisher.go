package processor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/pkg/market"
	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

var _ market.Observer = (*SnapshotPublisher)(nil)

// SnapshotPublisher mirrors every market price change into Redis: the
// latest tick under stock:<SYM> and a message on prices.<SYM>.
type SnapshotPublisher struct {
	rdb    RedisClient
	ttl    time.Duration
	logger Logger
	now    func() time.Time

	mu  sync.Mutex
	seq map[string]int64
}

func NewSnapshotPublisher(rdb RedisClient, ttl time.Duration, logger Logger) *SnapshotPublisher {
	return &SnapshotPublisher{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		seq:    make(map[string]int64),
	}
}

func (p *SnapshotPublisher) Name() string { return "redis-snapshot" }

// Update publishes stock. Redis failures are logged; the market never sees them.
func (p *SnapshotPublisher) Update(stock market.Stock) {
	p.mu.Lock()
	p.seq[stock.Symbol]++
	seq := p.seq[stock.Symbol]
	p.mu.Unlock()

	payload, err := json.Marshal(models.StockUpdate{
		Symbol:    stock.Symbol,
		Price:     stock.Price,
		Timestamp: p.now().UnixMicro(),
		SeqID:     seq,
	})
	if err != nil {
		p.logger.Error("JSON Marshal Error", zap.Error(err), zap.String("symbol", stock.Symbol))
		return
	}

	// Background context prevents cancellation mid-Redis write
	ctx := context.Background()

	pipe := p.rdb.Pipeline()
	pipe.Set(ctx, models.SnapshotKey(stock.Symbol), payload, p.ttl)
	pipe.Publish(ctx, models.PriceChannel(stock.Symbol), payload)

	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Error("Redis Pipeline Error", zap.Error(err), zap.String("symbol", stock.Symbol))
	}
}
