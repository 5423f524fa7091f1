package testutils

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// MockKafkaReader replays Messages, then reports context.DeadlineExceeded
// so the processor loop stops as if the test deadline had passed.
type MockKafkaReader struct {
	Messages []kafka.Message
	Index    int
	Mu       sync.Mutex
	Closed   bool
}

func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Closed {
		return kafka.Message{}, io.EOF
	}
	if m.Index >= len(m.Messages) {
		return kafka.Message{}, context.DeadlineExceeded
	}

	msg := m.Messages[m.Index]
	m.Index++
	return msg, nil
}

func (m *MockKafkaReader) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

// MockPipeline records the commands queued on it.
type MockPipeline struct {
	redis.Pipeliner // satisfies the methods the publisher never calls

	ExecCount    int
	RecordedCmds []string
	Payloads     map[string][]byte // key or channel -> last value
	FailExec     bool
	Mu           sync.Mutex
}

func (m *MockPipeline) record(cmd, target string, value interface{}) {
	m.RecordedCmds = append(m.RecordedCmds, cmd+" "+target)
	if m.Payloads == nil {
		m.Payloads = make(map[string][]byte)
	}
	if b, ok := value.([]byte); ok {
		m.Payloads[target] = b
	}
}

func (m *MockPipeline) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.record("SET", key, value)
	return redis.NewStatusCmd(ctx)
}

func (m *MockPipeline) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.record("PUBLISH", channel, message)
	return redis.NewIntCmd(ctx)
}

func (m *MockPipeline) Exec(ctx context.Context) ([]redis.Cmder, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.ExecCount++
	if m.FailExec {
		return nil, errors.New("redis down")
	}
	return nil, nil
}

func (m *MockPipeline) Execs() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.ExecCount
}

type MockRedisClient struct {
	PipelineSpy *MockPipeline
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{PipelineSpy: &MockPipeline{}}
}

func (m *MockRedisClient) Pipeline() redis.Pipeliner {
	return m.PipelineSpy
}

func (m *MockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusCmd(ctx)
}

func (m *MockRedisClient) Close() error { return nil }
