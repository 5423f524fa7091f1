package hub_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/testutils"
	"github.com/shubham-shewale/stock-ticker/pkg/market"
)

func setup() (*hub.Hub, *market.Market, *testutils.MockPriceStore) {
	m := market.New(zap.NewNop())
	for _, s := range []string{"AAPL", "TSLA", "GOOG"} {
		m.AddStock(market.Stock{Symbol: s, Price: 100})
	}
	store := testutils.NewMockStore()
	h := hub.NewHub(store, m, zap.NewNop())
	m.AddObserver(h)
	return h, m, store
}

func subscribe(symbols ...string) protocol.WSRequest {
	return protocol.WSRequest{Action: protocol.ActionSubscribe, Payload: protocol.RequestPayload{Symbols: symbols}}
}

func unsubscribe(symbols ...string) protocol.WSRequest {
	return protocol.WSRequest{Action: protocol.ActionUnsubscribe, Payload: protocol.RequestPayload{Symbols: symbols}}
}

func TestHub_Subscribe_Success(t *testing.T) {
	h, _, store := setup()
	client := testutils.NewMockClient("c1")

	req := subscribe("AAPL")
	req.ID = "req-1"
	h.HandleCommand(client, req)

	if ack := client.Msg(0); ack.Type != "ack" || ack.ID != "req-1" {
		t.Errorf("Expected ack for req-1, got %+v", ack)
	}
	if store.Subscriptions("AAPL") != 1 {
		t.Errorf("Expected Redis subscription to AAPL")
	}
}

func TestHub_Subscribe_SendsSnapshot(t *testing.T) {
	h, _, _ := setup()
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, subscribe("AAPL"))

	deadline := time.Now().Add(time.Second)
	for client.CountType(protocol.TypeSnapshot) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	snap := client.LastMsg()
	if snap.Type != protocol.TypeSnapshot {
		t.Fatalf("Expected a snapshot frame, got %+v", snap)
	}
	if tk, ok := snap.Data.(protocol.Ticker); !ok || tk.Symbol != "AAPL" || tk.Price != 150 {
		t.Errorf("Unexpected snapshot data %+v", snap.Data)
	}
}

func TestHub_Subscribe_MixedValidity(t *testing.T) {
	h, _, _ := setup()
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, subscribe("AAPL", "INVALID_STOCK"))

	ack := client.Msg(0)
	if ack.Status != "success" {
		t.Errorf("Expected success for partial valid subscription")
	}
	if !strings.Contains(ack.Message, "AAPL") {
		t.Errorf("Response should contain accepted symbol AAPL")
	}
	if strings.Contains(ack.Message, "INVALID_STOCK") {
		t.Errorf("Response should NOT contain invalid symbol")
	}
}

func TestHub_Subscribe_DelistedSymbolRejected(t *testing.T) {
	h, m, _ := setup()
	m.RemoveStock("TSLA")
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, subscribe("TSLA"))

	if client.LastMsgType() != "error" {
		t.Errorf("Expected error for delisted symbol, got %s", client.LastMsgType())
	}
}

func TestHub_Subscribe_Idempotency(t *testing.T) {
	h, _, store := setup()
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, subscribe("AAPL"))
	h.HandleCommand(client, subscribe("AAPL"))

	// Redis should still have count 1, not 2
	if store.Subscriptions("AAPL") != 1 {
		t.Errorf("Redis should only subscribe once per unique symbol")
	}
	if h.Watchers("AAPL") != 1 {
		t.Errorf("Expected 1 watcher, got %d", h.Watchers("AAPL"))
	}
}

func TestHub_SharedUpstreamSubscription(t *testing.T) {
	h, _, store := setup()
	c1 := testutils.NewMockClient("c1")
	c2 := testutils.NewMockClient("c2")

	h.HandleCommand(c1, subscribe("AAPL"))
	h.HandleCommand(c2, subscribe("AAPL"))
	if store.Subscriptions("AAPL") != 1 {
		t.Errorf("Two watchers should share one upstream subscription")
	}

	h.HandleCommand(c1, unsubscribe("AAPL"))
	if store.Subscriptions("AAPL") != 1 {
		t.Errorf("Upstream must stay while c2 watches AAPL")
	}

	h.Unregister(c2)
	if store.Subscriptions("AAPL") != 0 {
		t.Errorf("Upstream should be released after the last watcher leaves")
	}
}

func TestHub_Subscribe_UpstreamFailure(t *testing.T) {
	h, m, store := setup()
	a := testutils.NewMockClient("a")
	b := testutils.NewMockClient("b")

	store.SetFailSubscribe(true)
	h.HandleCommand(a, subscribe("AAPL"))

	if a.CountType(protocol.TypeAck) != 0 {
		t.Errorf("Failed subscription must not be acked")
	}
	if a.LastMsgType() != protocol.TypeError {
		t.Errorf("Expected error frame, got %+v", a.LastMsg())
	}
	if h.Watchers("AAPL") != 0 {
		t.Errorf("Expected no watchers after failed subscribe, got %d", h.Watchers("AAPL"))
	}

	// The next subscribe retries the upstream feed.
	store.SetFailSubscribe(false)
	h.HandleCommand(b, subscribe("AAPL"))
	h.HandleCommand(a, subscribe("AAPL"))

	if store.Subscriptions("AAPL") != 1 {
		t.Errorf("Expected one active upstream subscription, got %d", store.Subscriptions("AAPL"))
	}
	if store.SubscribeAttempts != 2 {
		t.Errorf("Expected 2 upstream attempts, got %d", store.SubscribeAttempts)
	}
	if h.Watchers("AAPL") != 2 {
		t.Errorf("Expected 2 watchers, got %d", h.Watchers("AAPL"))
	}

	m.UpdateStock("AAPL", 160)
	for _, c := range []*testutils.MockClient{a, b} {
		if len(c.Tickers()) != 1 {
			t.Errorf("%s: expected 1 ticker, got %d", c.ID(), len(c.Tickers()))
		}
	}
}

func TestHub_Subscribe_PartialUpstreamFailure(t *testing.T) {
	h, _, store := setup()
	c1 := testutils.NewMockClient("c1")
	c2 := testutils.NewMockClient("c2")

	h.HandleCommand(c1, subscribe("TSLA"))
	store.SetFailSubscribe(true)

	// TSLA already has an upstream feed, AAPL needs a new one.
	h.HandleCommand(c2, subscribe("TSLA", "AAPL"))

	if c2.CountType(protocol.TypeError) != 1 || c2.CountType(protocol.TypeAck) != 1 {
		t.Fatalf("Expected one error and one ack, got %+v", c2.Msg(0))
	}
	if ack := c2.Msg(1); !strings.Contains(ack.Message, "TSLA") || strings.Contains(ack.Message, "AAPL") {
		t.Errorf("Ack should only name TSLA, got %q", ack.Message)
	}
	if h.Watchers("AAPL") != 0 || h.Watchers("TSLA") != 2 {
		t.Errorf("Unexpected watchers AAPL=%d TSLA=%d", h.Watchers("AAPL"), h.Watchers("TSLA"))
	}
}

func TestHub_Unsubscribe_Logic(t *testing.T) {
	h, _, store := setup()
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, subscribe("AAPL", "TSLA"))
	h.HandleCommand(client, unsubscribe("AAPL"))

	if store.Subscriptions("AAPL") != 0 {
		t.Errorf("Redis should be unsubscribed from AAPL")
	}
	if store.Subscriptions("TSLA") != 1 {
		t.Errorf("Redis should still be subscribed to TSLA")
	}
}

func TestHub_Unsubscribe_NotSubscribed(t *testing.T) {
	h, _, _ := setup()
	client := testutils.NewMockClient("c1")

	req := unsubscribe("GOOG")
	req.ID = "err-check"
	h.HandleCommand(client, req)

	if client.LastMsgType() != "error" {
		t.Errorf("Expected error response for unsubscribing non-watched symbol")
	}
}

func TestHub_UnsubscribeAll(t *testing.T) {
	h, _, store := setup()
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, subscribe("AAPL", "TSLA"))
	h.HandleCommand(client, protocol.WSRequest{Action: "unsubscribe_all"})

	store.Mu.Lock()
	remaining := len(store.SubscribedChannels)
	store.Mu.Unlock()
	if remaining != 0 {
		t.Errorf("Store should be empty after unsubscribe_all")
	}

	// Still registered: can subscribe again.
	h.HandleCommand(client, subscribe("AAPL"))
	if client.LastMsgType() != "ack" {
		t.Errorf("Expected ack on re-subscribe, got %s", client.LastMsgType())
	}
}

func TestHub_UnknownAction(t *testing.T) {
	h, _, _ := setup()
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, protocol.WSRequest{Action: "dance", ID: "x"})

	msg := client.LastMsg()
	if msg.Type != "error" || !strings.Contains(msg.Message, "dance") {
		t.Errorf("Expected unknown action error, got %+v", msg)
	}
}

func TestHub_MarketUpdateReachesSubscribersOnly(t *testing.T) {
	h, m, _ := setup()
	watcher := testutils.NewMockClient("watcher")
	other := testutils.NewMockClient("other")

	h.HandleCommand(watcher, subscribe("AAPL"))
	h.HandleCommand(other, subscribe("TSLA"))

	m.UpdateStock("AAPL", 155.20)

	got := watcher.Tickers()
	if len(got) != 1 || got[0].Symbol != "AAPL" || got[0].Price != 155.20 {
		t.Errorf("Expected one AAPL ticker at 155.20, got %+v", got)
	}
	if len(other.Tickers()) != 0 {
		t.Errorf("TSLA watcher should not receive AAPL ticks")
	}
}

func TestHub_UnregisteredClientGetsNothing(t *testing.T) {
	h, m, _ := setup()
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, subscribe("AAPL"))
	h.Unregister(client)
	m.UpdateStock("AAPL", 101)

	if len(client.Tickers()) != 0 {
		t.Errorf("Unregistered client received %d ticks", len(client.Tickers()))
	}
	if !client.Closed {
		t.Error("Unregister should close the client")
	}
}

func TestHub_RaceCondition(t *testing.T) {
	// Run with `go test -race ./...`
	h, m, _ := setup()
	client := testutils.NewMockClient("c1")

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		h.HandleCommand(client, subscribe("AAPL"))
	}()
	go func() {
		defer wg.Done()
		h.HandleCommand(client, unsubscribe("AAPL"))
	}()
	go func() {
		defer wg.Done()
		m.UpdateStock("AAPL", 120)
	}()
	go func() {
		defer wg.Done()
		h.Unregister(client)
	}()
	wg.Wait()
}
