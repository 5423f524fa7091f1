package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shubham-shewale/stock-ticker/pkg/market"
)

var ErrStockNotFound = errors.New("stock_not_found")

// StockReader is the read side of the gateway market.
type StockReader interface {
	Stock(symbol string) (market.Stock, bool)
	Stocks() []market.Stock
}

type StockHandler struct {
	stocks StockReader
}

func NewStockHandler(stocks StockReader) *StockHandler {
	return &StockHandler{stocks: stocks}
}

type stockListResponse struct {
	Stocks []market.Stock `json:"stocks"`
	Count  int            `json:"count"`
}

// List handles GET /stocks.
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	stocks := h.stocks.Stocks()
	WriteJSON(w, http.StatusOK, stockListResponse{Stocks: stocks, Count: len(stocks)})
}

// Get handles GET /stocks/{symbol}.
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	stock, ok := h.stocks.Stock(symbol)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrStockNotFound.Error(), "symbol "+symbol+" is not listed")
		return
	}
	WriteJSON(w, http.StatusOK, stock)
}
