package orderbook

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotdex/pkg/app/core/asset"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) Opposite() Side { return -s }

func (s Side) Valid() bool { return s == Buy || s == Sell }

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

type OrderType int8

const (
	Limit OrderType = iota
	Market
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case Market:
		return "market"
	default:
		return "unknown"
	}
}

// OrderID is the engine-wide sequence number of an order. It increases strictly with
// submission order and breaks price ties (lower ID executes first).
type OrderID uint64

type Order struct {
	ID     OrderID
	Asset  asset.Symbol
	Side   Side
	Type   OrderType
	Trader common.Address

	Price     int64 // limit price in quote units; 0 for market orders
	Qty       int64 // requested quantity
	Remaining int64 // unfilled quantity, only ever decreases

	// Escrow is the amount of the offered asset still held for this order:
	// base quantity for sells, quote notional at the limit price for buys.
	Escrow int64

	CreatedAt int64 // unix milliseconds
}

func (o *Order) Filled() int64 { return o.Qty - o.Remaining }

// PriceLevel is the aggregated size resting at one price.
type PriceLevel struct {
	Price  int64
	Qty    int64
	Orders int
}
