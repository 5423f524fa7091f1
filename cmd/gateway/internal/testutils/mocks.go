package testutils

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/protocol"
)

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal    string
	Messages []protocol.WSResponse // responses passed to SendJSON
	RawBytes []string              // frames passed to SendBytes
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id, Messages: make([]protocol.WSResponse, 0)}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) LastMsgType() string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return ""
	}
	return m.Messages[len(m.Messages)-1].Type
}

// Msg returns the i-th SendJSON response.
func (m *MockClient) Msg(i int) protocol.WSResponse {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if i >= len(m.Messages) {
		return protocol.WSResponse{}
	}
	return m.Messages[i]
}

func (m *MockClient) LastMsg() protocol.WSResponse {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return protocol.WSResponse{}
	}
	return m.Messages[len(m.Messages)-1]
}

// Tickers decodes every raw ticker frame the client received.
func (m *MockClient) Tickers() []protocol.Ticker {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	var out []protocol.Ticker
	for _, raw := range m.RawBytes {
		var frame struct {
			Type string          `json:"type"`
			Data protocol.Ticker `json:"data"`
		}
		if json.Unmarshal([]byte(raw), &frame) == nil && frame.Type == protocol.TypeTicker {
			out = append(out, frame.Data)
		}
	}
	return out
}

// CountType counts SendJSON responses of the given type.
func (m *MockClient) CountType(typ string) int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	n := 0
	for _, msg := range m.Messages {
		if msg.Type == typ {
			n++
		}
	}
	return n
}

// MockPriceStore simulates Redis
type MockPriceStore struct {
	SubscribedChannels map[string]int // symbol -> count
	Snapshots          map[string]string
	FailSnapshots      bool
	FailSubscribe      bool
	SubscribeAttempts  int
	Mu                 sync.Mutex
}

func NewMockStore() *MockPriceStore {
	return &MockPriceStore{
		SubscribedChannels: make(map[string]int),
		Snapshots: map[string]string{
			"AAPL": `{"symbol":"AAPL","price":150,"timestamp":1,"seq_id":1}`,
		},
	}
}

func (m *MockPriceStore) GetSnapshots(ctx context.Context, symbols []string) ([]string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.FailSnapshots {
		return nil, errors.New("redis down")
	}
	var out []string
	for _, s := range symbols {
		if snap, ok := m.Snapshots[s]; ok {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (m *MockPriceStore) SubscribeToFeed(ctx context.Context, symbol string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribeAttempts++
	if m.FailSubscribe {
		return errors.New("redis down")
	}
	m.SubscribedChannels[symbol]++
	return nil
}

func (m *MockPriceStore) UnsubscribeFromFeed(ctx context.Context, symbol string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribedChannels[symbol]--
	if m.SubscribedChannels[symbol] <= 0 {
		delete(m.SubscribedChannels, symbol)
	}
	return nil
}

// SetFailSubscribe toggles whether SubscribeToFeed errors.
func (m *MockPriceStore) SetFailSubscribe(fail bool) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.FailSubscribe = fail
}

func (m *MockPriceStore) Subscriptions(symbol string) int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.SubscribedChannels[symbol]
}

func (m *MockPriceStore) RunPubSub(ctx context.Context, onMessage func(symbol string, payload string)) {
	// No-op for unit tests
}

func (m *MockPriceStore) Close() error { return nil }
