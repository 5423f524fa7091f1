package generator

import (
	"context"
	"math/rand"
	"time"

	"github.com/segmentio/kafka-go"
)

// Clock and Rand are injected so tests can drive the walk deterministically.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type Rand interface {
	Intn(n int) int
	Float64() float64
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaDialer interface {
	DialContext(ctx context.Context, network, address string) (KafkaConn, error)
}

type KafkaConn interface {
	Controller() (kafka.Broker, error)
	Close() error
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock is the wall clock.
func SystemClock() Clock { return systemClock{} }

// NewRand returns a Rand seeded with seed.
func NewRand(seed int64) Rand { return rand.New(rand.NewSource(seed)) }

type kafkaConn struct{ *kafka.Conn }

func (c kafkaConn) Controller() (kafka.Broker, error) { return c.Conn.Controller() }
func (c kafkaConn) Close() error                      { return c.Conn.Close() }
func (c kafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	return c.Conn.CreateTopics(topics...)
}
func (c kafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	return c.Conn.ReadPartitions(topics...)
}

// NewKafkaDialer adapts d to KafkaDialer.
func NewKafkaDialer(d *kafka.Dialer) KafkaDialer { return kafkaDialer{d} }

type kafkaDialer struct{ d *kafka.Dialer }

func (k kafkaDialer) DialContext(ctx context.Context, network, address string) (KafkaConn, error) {
	conn, err := k.d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return kafkaConn{Conn: conn}, nil
}
