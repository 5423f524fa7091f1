package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket" // Using Gorilla for the test CLIENT
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/gateway"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/handler"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/stock-ticker/pkg/market"
)

func startServer(t *testing.T) (*httptest.Server, *miniredis.Miniredis, *market.Market) {
	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := repository.NewRedisStore(rdb)
	t.Cleanup(func() { repo.Close() })

	m := market.New(zap.NewNop())
	m.AddStock(market.Stock{Symbol: "AAPL", Price: 150})
	m.AddStock(market.Stock{Symbol: "MSFT", Price: 300})

	wsHub := hub.NewHub(repo, m, zap.NewNop())
	m.AddObserver(wsHub)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go repo.RunPubSub(ctx, hub.NewFeed(m, zap.NewNop()).OnMessage)

	ws := gateway.Handler(wsHub, zap.NewNop(), gateway.Options{})
	server := httptest.NewServer(handler.NewRouter(m, ws, zap.NewNop()))
	t.Cleanup(server.Close)

	return server, mr, m
}

func connectWS(t *testing.T, serverURL string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	wsConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to websocket: %v", err)
	}
	return wsConn
}

func readFrame(t *testing.T, c *websocket.Conn) protocol.WSResponse {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var resp protocol.WSResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		t.Fatalf("invalid frame %s: %v", msg, err)
	}
	return resp
}

func TestEndToEnd_FullFlow(t *testing.T) {
	server, mr, m := startServer(t)

	wsConn := connectWS(t, server.URL)
	defer wsConn.Close()

	subMsg := `{"action": "subscribe", "payload": {"symbols": [" aapl "]}, "id": "t1"}`
	wsConn.WriteMessage(websocket.TextMessage, []byte(subMsg))

	if ack := readFrame(t, wsConn); ack.Status != "success" || ack.ID != "t1" {
		t.Errorf("Expected subscription success, got: %+v", ack)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		mr.Publish("prices.AAPL", `{"symbol":"AAPL","price":150.5,"seq_id":1}`)
	}()

	wsConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := wsConn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to receive broadcast: %v", err)
	}
	if !strings.Contains(string(msg), "150.5") || !strings.Contains(string(msg), `"ticker"`) {
		t.Errorf("Expected ticker at 150.5, got: %s", msg)
	}
	if s, _ := m.Stock("AAPL"); s.Price != 150.5 {
		t.Errorf("Gateway market should hold 150.5, got %v", s.Price)
	}

	unsubMsg := `{"action": "unsubscribe", "payload": {"symbols": ["AAPL"]}, "id": "t2"}`
	wsConn.WriteMessage(websocket.TextMessage, []byte(unsubMsg))

	if ack := readFrame(t, wsConn); !strings.Contains(ack.Message, "Unsubscribed") {
		t.Errorf("Expected unsubscribe ack, got: %+v", ack)
	}
}

func TestEndToEnd_SnapshotOnSubscribe(t *testing.T) {
	server, mr, _ := startServer(t)
	mr.Set("stock:MSFT", `{"symbol":"MSFT","price":310.25,"timestamp":5,"seq_id":9}`)

	wsConn := connectWS(t, server.URL)
	defer wsConn.Close()

	wsConn.WriteMessage(websocket.TextMessage, []byte(`{"action":"subscribe","payload":{"symbols":["MSFT"]}}`))

	if ack := readFrame(t, wsConn); ack.Type != "ack" {
		t.Fatalf("Expected ack first, got %+v", ack)
	}
	snap := readFrame(t, wsConn)
	if snap.Type != "snapshot" {
		t.Fatalf("Expected snapshot, got %+v", snap)
	}
	data, _ := snap.Data.(map[string]interface{})
	if data["symbol"] != "MSFT" || data["price"] != 310.25 {
		t.Errorf("Unexpected snapshot data %v", snap.Data)
	}
}

func TestEndToEnd_UnlistedSymbolRejected(t *testing.T) {
	server, _, _ := startServer(t)
	wsConn := connectWS(t, server.URL)
	defer wsConn.Close()

	wsConn.WriteMessage(websocket.TextMessage, []byte(`{"action":"subscribe","payload":{"symbols":["GOOGL"]},"id":"x"}`))

	if resp := readFrame(t, wsConn); resp.Type != "error" {
		t.Errorf("Expected error for unlisted symbol, got %+v", resp)
	}
}

func TestEndToEnd_InvalidJSON(t *testing.T) {
	server, _, _ := startServer(t)
	wsConn := connectWS(t, server.URL)
	defer wsConn.Close()

	wsConn.WriteMessage(websocket.TextMessage, []byte(`{ "action": "subsc`))

	_, msg, _ := wsConn.ReadMessage()
	if !strings.Contains(string(msg), "Invalid JSON") && !strings.Contains(string(msg), "error") {
		t.Errorf("Expected error message for bad JSON, got: %s", msg)
	}
}

func TestEndToEnd_MaxMessageSize(t *testing.T) {
	server, _, _ := startServer(t)
	wsConn := connectWS(t, server.URL)
	defer wsConn.Close()

	hugePayload := strings.Repeat("a", 513*1024)
	hugeMsg := fmt.Sprintf(`{"action":"subscribe", "payload": {"symbols": ["%s"]}}`, hugePayload)

	err := wsConn.WriteMessage(websocket.TextMessage, []byte(hugeMsg))
	// Depending on timing, write might succeed, but Read should fail (Disconnect)
	if err == nil {
		wsConn.SetReadDeadline(time.Now().Add(1 * time.Second))
		_, _, err := wsConn.ReadMessage()
		if err == nil {
			t.Error("Server should have closed connection for huge message, but it stayed open")
		}
	}
}

func TestEndToEnd_RESTReflectsFeed(t *testing.T) {
	server, mr, _ := startServer(t)
	wsConn := connectWS(t, server.URL)
	defer wsConn.Close()

	// The gateway only listens upstream for watched symbols.
	wsConn.WriteMessage(websocket.TextMessage, []byte(`{"action":"subscribe","payload":{"symbols":["AAPL"]}}`))
	readFrame(t, wsConn)

	time.Sleep(100 * time.Millisecond)
	mr.Publish("prices.AAPL", `{"symbol":"AAPL","price":161.75,"seq_id":2}`)
	readFrame(t, wsConn)

	resp, err := server.Client().Get(server.URL + "/stocks/AAPL")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var s market.Stock
	json.NewDecoder(resp.Body).Decode(&s)
	if s.Price != 161.75 {
		t.Errorf("REST price = %v, want 161.75", s.Price)
	}
}
