package market

import (
	"reflect"
	"sync"

	"github.com/google/btree"
	"go.uber.org/zap"
)

// Stock is a listed symbol and its last known price.
type Stock struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func lessBySymbol(a, b Stock) bool { return a.Symbol < b.Symbol }

// Observer is notified every time a listed stock changes price.
//
// Membership in a Market is decided by equality for comparable observers
// (pointers, plain structs). Observers of a non-comparable type, such as a
// struct holding a slice, are told apart by dynamic type and Name.
type Observer interface {
	Name() string
	Update(stock Stock)
}

// Market owns the listed stocks and the observers interested in them.
//
// UpdateStock mutates the stock and notifies every observer while holding
// the market lock, so all observers have seen the new price by the time it
// returns. Observers must not call back into the same Market from Update.
type Market struct {
	mu        sync.Mutex
	stocks    *btree.BTreeG[Stock]
	observers []Observer
	logger    *zap.Logger
}

func New(logger *zap.Logger) *Market {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Market{
		stocks: btree.NewG[Stock](8, lessBySymbol),
		logger: logger,
	}
}

// AddStock lists a stock, overwriting any existing entry for the symbol.
func (m *Market) AddStock(stock Stock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stocks.ReplaceOrInsert(stock)
}

// RemoveStock delists a symbol. Unknown symbols are ignored.
func (m *Market) RemoveStock(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stocks.Delete(Stock{Symbol: symbol})
}

// UpdateStock sets the price of a listed symbol and notifies every observer
// in registration order. Updating a symbol that is not listed does nothing.
func (m *Market) UpdateStock(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stock, ok := m.stocks.Get(Stock{Symbol: symbol})
	if !ok {
		m.logger.Debug("Ignoring update for unlisted symbol", zap.String("symbol", symbol))
		return
	}

	stock.Price = price
	m.stocks.ReplaceOrInsert(stock)

	for _, o := range m.observers {
		o.Update(stock)
	}
}

// AddObserver registers o. Registering the same observer twice is a no-op,
// and so is registering nil.
func (m *Market) AddObserver(o Observer) {
	if o == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOf(o) >= 0 {
		return
	}
	m.observers = append(m.observers, o)
}

// RemoveObserver unregisters o if it is registered.
func (m *Market) RemoveObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(o)
	if i < 0 {
		return
	}
	m.observers = append(m.observers[:i], m.observers[i+1:]...)
}

// Stock returns the listed stock for symbol.
func (m *Market) Stock(symbol string) (Stock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stocks.Get(Stock{Symbol: symbol})
}

// Stocks returns every listed stock ordered by symbol.
func (m *Market) Stocks() []Stock {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Stock, 0, m.stocks.Len())
	m.stocks.Ascend(func(s Stock) bool {
		out = append(out, s)
		return true
	})
	return out
}

// Observers returns the registered observers in notification order.
func (m *Market) Observers() []Observer {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Observer, len(m.observers))
	copy(out, m.observers)
	return out
}

func (m *Market) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stocks.Len()
}

func (m *Market) indexOf(o Observer) int {
	for i, existing := range m.observers {
		if sameObserver(existing, o) {
			return i
		}
	}
	return -1
}

func sameObserver(a, b Observer) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil || ta.Comparable() {
		return a == b
	}
	return a.Name() == b.Name()
}
