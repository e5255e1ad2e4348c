package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/uhyunpark/spotdex/pkg/app/core/asset"
	"github.com/uhyunpark/spotdex/pkg/app/core/orderbook"
)

// State is how a submitted order ended up once matching finished.
type State int8

const (
	Filled             State = iota // nothing left
	PartiallyResting                // some fills, limit remainder rests
	PartiallyDiscarded              // some fills, market remainder dropped
	UnmatchedResting                // no fills, limit order rests in full
	UnmatchedDiscarded              // no fills, market order dropped
)

func (s State) String() string {
	switch s {
	case Filled:
		return "filled"
	case PartiallyResting:
		return "partially_resting"
	case PartiallyDiscarded:
		return "partially_discarded"
	case UnmatchedResting:
		return "unmatched_resting"
	case UnmatchedDiscarded:
		return "unmatched_discarded"
	default:
		return "unknown"
	}
}

// Resting reports whether part of the order is on the book.
func (s State) Resting() bool { return s == PartiallyResting || s == UnmatchedResting }

// Trade is one fill between an incoming (taker) order and a resting (maker) order.
// It always executes at the maker's price.
type Trade struct {
	ID         uuid.UUID         `json:"id"`
	Seq        uint64            `json:"seq"`
	Asset      asset.Symbol      `json:"asset"`
	Price      int64             `json:"price"`
	Qty        int64             `json:"qty"`
	TakerSide  orderbook.Side    `json:"takerSide"`
	TakerOrder orderbook.OrderID `json:"takerOrder"`
	MakerOrder orderbook.OrderID `json:"makerOrder"`
	Taker      common.Address    `json:"taker"`
	Maker      common.Address    `json:"maker"`
	Timestamp  int64             `json:"timestamp"` // unix milliseconds
}

// Notional is the quote amount exchanged.
func (t Trade) Notional() int64 { return t.Price * t.Qty }

type Result struct {
	OrderID   orderbook.OrderID
	Asset     asset.Symbol
	Side      orderbook.Side
	Type      orderbook.OrderType
	State     State
	Qty       int64
	Filled    int64
	Remaining int64 // resting (limit) or discarded (market)
	Trades    []Trade
}

// BookSnapshot is the aggregated depth of one market.
type BookSnapshot struct {
	Asset     asset.Symbol
	Bids      []orderbook.PriceLevel
	Asks      []orderbook.PriceLevel
	BestBid   int64 // 0 without bids
	BestAsk   int64 // 0 without asks
	LastPrice int64
}
