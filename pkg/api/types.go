package api

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// AssetInfo is one registered asset.
type AssetInfo struct {
	Symbol  string `json:"symbol"`
	Custody string `json:"custody"` // custody contract address
	Index   int    `json:"index"`   // registration order
	Quote   bool   `json:"quote"`   // every market settles in the quote asset
}

// OrderbookSnapshot represents current orderbook state
type OrderbookSnapshot struct {
	Asset     string       `json:"asset"`
	Bids      []PriceLevel `json:"bids"` // sorted high to low
	Asks      []PriceLevel `json:"asks"` // sorted low to high
	BestBid   int64        `json:"bestBid"`
	BestAsk   int64        `json:"bestAsk"`
	LastPrice int64        `json:"lastPrice"`
	Timestamp int64        `json:"timestamp"` // unix milliseconds
}

type PriceLevel struct {
	Price  int64 `json:"price"`
	Size   int64 `json:"size"`
	Orders int   `json:"orders"`
}

// TradeInfo represents a recent trade
type TradeInfo struct {
	ID        string `json:"id"`
	Seq       uint64 `json:"seq"`
	Asset     string `json:"asset"`
	Price     int64  `json:"price"`
	Size      int64  `json:"size"`
	Side      string `json:"side"` // taker side
	Timestamp int64  `json:"timestamp"`
}

// OrderInfo is a resting order.
type OrderInfo struct {
	ID        uint64 `json:"id"`
	Asset     string `json:"asset"`
	Side      string `json:"side"`
	Trader    string `json:"trader"`
	Price     int64  `json:"price"`
	Size      int64  `json:"size"`
	Remaining int64  `json:"remaining"`
	CreatedAt int64  `json:"createdAt"`
}

type BalanceInfo struct {
	Asset     string `json:"asset"`
	Available int64  `json:"available"`
	Held      int64  `json:"held"` // escrowed by resting orders
}

type AccountBalances struct {
	Address  string        `json:"address"`
	Balances []BalanceInfo `json:"balances"`
}

type StateInfo struct {
	StateHash string   `json:"stateHash"`
	Markets   []string `json:"markets"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by clients, e.g.
// {"op":"subscribe","channels":["trades:LINK","orderbook:LINK"]}
type WSSubscribeRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}

type OrderbookUpdate struct {
	Type string `json:"type"` // "orderbook"
	OrderbookSnapshot
}

type TradeUpdate struct {
	Type string `json:"type"` // "trade"
	TradeInfo
}
