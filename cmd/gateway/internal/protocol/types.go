package protocol

const (
	ActionSubscribe      = "subscribe"
	ActionUnsubscribe    = "unsubscribe"
	ActionUnsubscribeAll = "unsubscribe_all"
)

const (
	TypeAck      = "ack"
	TypeError    = "error"
	TypeTicker   = "ticker"
	TypeSnapshot = "snapshot"

	StatusSuccess = "success"
)

type WSRequest struct {
	Action  string         `json:"action"`
	Payload RequestPayload `json:"payload"`
	ID      string         `json:"id,omitempty"`
}

type RequestPayload struct {
	Symbols []string `json:"symbols"`
}

type WSResponse struct {
	Type    string      `json:"type"`             // ack, error, ticker, snapshot
	ID      string      `json:"id,omitempty"`     // matches the request ID
	Status  string      `json:"status,omitempty"` // success on acks
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Ticker is the Data of ticker and snapshot frames.
type Ticker struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp,omitempty"`
}
