package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/stock-ticker/pkg/market"
	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

type ClientInterface interface {
	ID() string
	SendJSON(v interface{})
	SendBytes(b []byte)
	Close()
}

// Listings answers whether a symbol is tradable on this gateway.
type Listings interface {
	Stock(symbol string) (market.Stock, bool)
}

var _ market.Observer = (*Hub)(nil)

// Hub tracks which websocket clients watch which symbols and forwards
// market updates to them. It is registered as an observer of the gateway
// market, so Update runs inside the market's critical section; the hub
// never calls back into the market while holding its own lock.
type Hub struct {
	subscribers map[string]map[ClientInterface]bool
	clientSubs  map[ClientInterface]map[string]bool
	refCount    map[string]int

	listings Listings
	store    repository.PriceStore
	logger   *zap.Logger
	mu       sync.RWMutex
}

func NewHub(store repository.PriceStore, listings Listings, logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[ClientInterface]bool),
		clientSubs:  make(map[ClientInterface]map[string]bool),
		refCount:    make(map[string]int),
		listings:    listings,
		store:       store,
		logger:      logger,
	}
}

func (h *Hub) Name() string { return "websocket-hub" }

// Update pushes a ticker frame to every client subscribed to stock.Symbol.
func (h *Hub) Update(stock market.Stock) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.subscribers[stock.Symbol]
	if len(clients) == 0 {
		return
	}

	msg, err := json.Marshal(protocol.WSResponse{
		Type: protocol.TypeTicker,
		Data: protocol.Ticker{Symbol: stock.Symbol, Price: stock.Price},
	})
	if err != nil {
		h.logger.Error("Failed to encode ticker", zap.String("symbol", stock.Symbol), zap.Error(err))
		return
	}
	for client := range clients {
		client.SendBytes(msg)
	}
}

func (h *Hub) HandleCommand(client ClientInterface, req protocol.WSRequest) {
	switch req.Action {
	case protocol.ActionSubscribe:
		h.handleSubscribe(client, req)
	case protocol.ActionUnsubscribe:
		h.handleUnsubscribe(client, req)
	case protocol.ActionUnsubscribeAll:
		h.handleUnsubscribeAll(client, req)
	default:
		h.sendError(client, req.ID, "Unknown action: "+req.Action)
	}
}

func (h *Hub) handleSubscribe(client ClientInterface, req protocol.WSRequest) {
	// Listing lookups take the market lock, so they happen before h.mu.
	var listed []string
	for _, s := range req.Payload.Symbols {
		if _, ok := h.listings.Stock(s); ok {
			listed = append(listed, s)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var valid []string
	for _, s := range listed {
		if h.clientSubs[client][s] {
			continue
		}
		valid = append(valid, s)
	}

	if len(valid) == 0 {
		h.sendError(client, req.ID, "No valid/new symbols provided")
		return
	}

	if h.clientSubs[client] == nil {
		h.clientSubs[client] = make(map[string]bool)
	}

	var subscribed, failed []string
	for _, sym := range valid {
		// The first watcher opens the upstream feed. If that fails the symbol
		// is left unwatched so the next subscribe tries again.
		if h.refCount[sym] == 0 {
			if err := h.store.SubscribeToFeed(context.Background(), sym); err != nil {
				h.logger.Error("Failed to subscribe upstream", zap.String("symbol", sym), zap.Error(err))
				failed = append(failed, sym)
				continue
			}
		}

		h.clientSubs[client][sym] = true
		if h.subscribers[sym] == nil {
			h.subscribers[sym] = make(map[ClientInterface]bool)
		}
		h.subscribers[sym][client] = true
		h.refCount[sym]++
		subscribed = append(subscribed, sym)
	}

	if len(failed) > 0 {
		h.sendError(client, req.ID, fmt.Sprintf("Feed unavailable for: %v", failed))
	}
	if len(subscribed) == 0 {
		return
	}

	h.sendAck(client, req.ID, fmt.Sprintf("Subscribed to %v", subscribed))

	// Snapshots go out after the ack, off the lock.
	go h.sendSnapshots(client, subscribed)
}

func (h *Hub) sendSnapshots(client ClientInterface, symbols []string) {
	snapshots, err := h.store.GetSnapshots(context.Background(), symbols)
	if err != nil {
		h.logger.Warn("Failed to load snapshots", zap.Strings("symbols", symbols), zap.Error(err))
		return
	}
	for _, snap := range snapshots {
		var u models.StockUpdate
		if err := json.Unmarshal([]byte(snap), &u); err != nil {
			h.logger.Warn("Skipping malformed snapshot", zap.Error(err))
			continue
		}
		client.SendJSON(protocol.WSResponse{
			Type: protocol.TypeSnapshot,
			Data: protocol.Ticker{Symbol: u.Symbol, Price: u.Price, Timestamp: u.Timestamp},
		})
	}
}

func (h *Hub) handleUnsubscribe(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var removed []string
	if subs, ok := h.clientSubs[client]; ok {
		for _, sym := range req.Payload.Symbols {
			if subs[sym] {
				delete(subs, sym)
				h.detach(client, sym)
				removed = append(removed, sym)
			}
		}
	}

	if len(removed) > 0 {
		h.sendAck(client, req.ID, fmt.Sprintf("Unsubscribed from %v", removed))
	} else {
		h.sendError(client, req.ID, fmt.Sprintf("Not subscribed to: %v", req.Payload.Symbols))
	}
}

func (h *Hub) handleUnsubscribeAll(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for sym := range subs {
			h.detach(client, sym)
		}
		// The client stays registered with an empty watchlist.
		h.clientSubs[client] = make(map[string]bool)
	}
	h.sendAck(client, req.ID, "Unsubscribed from all symbols")
}

// Unregister drops every subscription of client and closes it.
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for sym := range subs {
			h.detach(client, sym)
		}
		delete(h.clientSubs, client)
	}
	client.Close()
}

// Watchers returns how many clients watch symbol.
func (h *Hub) Watchers(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[symbol])
}

// detach removes client from symbol and releases the upstream feed when
// nobody watches it anymore. Callers hold h.mu.
func (h *Hub) detach(client ClientInterface, symbol string) {
	delete(h.subscribers[symbol], client)

	h.refCount[symbol]--
	if h.refCount[symbol] <= 0 {
		if err := h.store.UnsubscribeFromFeed(context.Background(), symbol); err != nil {
			h.logger.Error("Failed to unsubscribe upstream", zap.String("symbol", symbol), zap.Error(err))
		}
		delete(h.refCount, symbol)
		delete(h.subscribers, symbol)
	}
}

func (h *Hub) sendAck(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeAck, ID: id, Status: protocol.StatusSuccess, Message: msg})
}

func (h *Hub) sendError(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, ID: id, Message: msg})
}
