package processor

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/pkg/config"
	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

const defaultQueueSize = 100

// Processor moves ticks from Kafka into the market. Ticks are sharded by
// symbol so each symbol is always handled by the same worker, in order.
type Processor struct {
	logger     Logger
	market     PriceUpdater
	reader     KafkaReader
	numWorkers int
	queueSize  int
}

func NewProcessor(cfg *config.Config, logger Logger, m PriceUpdater, reader KafkaReader) *Processor {
	workers := cfg.Processor.NumWorkers
	if workers < 1 {
		workers = 1
	}
	queue := cfg.Processor.QueueSize
	if queue < 1 {
		queue = defaultQueueSize
	}
	return &Processor{
		logger:     logger,
		market:     m,
		reader:     reader,
		numWorkers: workers,
		queueSize:  queue,
	}
}

// Run blocks until ctx is cancelled and every worker has drained its queue.
func (p *Processor) Run(ctx context.Context) error {
	workerChans := make([]chan []byte, p.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < p.numWorkers; i++ {
		workerChans[i] = make(chan []byte, p.queueSize)
		wg.Add(1)
		go p.worker(i, workerChans[i], &wg)
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		p.logger.Info("Processor Started", zap.Int("workers", p.numWorkers))
		for {
			m, err := p.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
					return
				}
				p.logger.Error("Kafka Read Error", zap.Error(err))
				continue
			}

			workerID := getWorkerID(m.Key, p.numWorkers)

			select {
			case workerChans[workerID] <- m.Value:
			case <-ctx.Done():
				return
			default:
				// Latest price wins; a stale tick is not worth blocking the partition.
				p.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", workerID))
			}
		}
	}()

	<-ctx.Done()
	p.logger.Info("Shutdown signal received, stopping processor...")

	// Queues are closed only once nothing can send on them.
	<-readerDone
	for _, ch := range workerChans {
		close(ch)
	}
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

func (p *Processor) worker(id int, msgs <-chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()

	// Sharding by symbol is what makes per-worker dedup state sufficient.
	last := make(map[string]models.StockUpdate)

	for payload := range msgs {
		var update models.StockUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			p.logger.Error("JSON Unmarshal Error", zap.Error(err))
			continue
		}
		if err := update.Validate(); err != nil {
			p.logger.Warn("Rejecting tick", zap.String("symbol", update.Symbol), zap.Error(err))
			continue
		}

		if isStale(update, last[update.Symbol]) {
			p.logger.Debug("Skipping duplicate update", zap.String("symbol", update.Symbol), zap.Int64("seq_id", update.SeqID))
			continue
		}
		last[update.Symbol] = update

		p.market.UpdateStock(update.Symbol, update.Price)
		p.logger.Debug("Processed", zap.String("symbol", update.Symbol), zap.Int("worker_id", id), zap.Int64("seq_id", update.SeqID))
	}
}

// isStale reports whether u was already applied or is older than prev. A
// lower SeqID with a newer Timestamp means the generator restarted and its
// sequence began again.
func isStale(u, prev models.StockUpdate) bool {
	return u.SeqID <= prev.SeqID && u.Timestamp <= prev.Timestamp
}

func getWorkerID(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(numWorkers))
}
