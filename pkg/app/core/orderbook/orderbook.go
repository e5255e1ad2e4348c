package orderbook

import (
	"errors"
	"fmt"

	"github.com/tidwall/btree"

	"github.com/uhyunpark/spotdex/pkg/app/core/asset"
)

var (
	ErrNotRestable    = errors.New("order cannot rest on the book")
	ErrDuplicateOrder = errors.New("order already on the book")
	ErrNotResting     = errors.New("order is not resting on the book")
	ErrInvalidFill    = errors.New("invalid fill amount")
)

// OrderBook holds the resting limit orders of one asset.
//
// Price levels live in B-trees keyed by price (best bid = max key, best ask = min key);
// each level is a FIFO queue, so the head of the best level is the order with
// price-time priority.
//
// OrderBook is not safe for concurrent use. The matching engine serializes every
// access to a book under that asset's lock.
type OrderBook struct {
	symbol asset.Symbol

	bids *btree.Map[int64, *priceLevel]
	asks *btree.Map[int64, *priceLevel]

	index map[OrderID]*Order

	lastPrice int64 // price of the most recent fill
}

func NewOrderBook(symbol asset.Symbol) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   btree.NewMap[int64, *priceLevel](32),
		asks:   btree.NewMap[int64, *priceLevel](32),
		index:  make(map[OrderID]*Order),
	}
}

func (ob *OrderBook) Symbol() asset.Symbol { return ob.symbol }

func (ob *OrderBook) levels(s Side) *btree.Map[int64, *priceLevel] {
	if s == Buy {
		return ob.bids
	}
	return ob.asks
}

// Insert adds a resting limit order behind every order already at its price.
func (ob *OrderBook) Insert(o *Order) error {
	if o.Type != Limit || o.Remaining <= 0 || o.Price <= 0 || !o.Side.Valid() {
		return fmt.Errorf("%w: id=%d type=%s side=%d price=%d remaining=%d",
			ErrNotRestable, o.ID, o.Type, o.Side, o.Price, o.Remaining)
	}
	if o.Asset != ob.symbol {
		return fmt.Errorf("%w: order for %s on %s book", ErrNotRestable, o.Asset, ob.symbol)
	}
	if _, exists := ob.index[o.ID]; exists {
		return fmt.Errorf("%w: id=%d", ErrDuplicateOrder, o.ID)
	}

	side := ob.levels(o.Side)
	level, ok := side.Get(o.Price)
	if !ok {
		level = newPriceLevel(o.Price)
		side.Set(o.Price, level)
	}
	level.push(o)
	ob.index[o.ID] = o
	return nil
}

// Best returns the highest-priority resting order on side s without removing it.
func (ob *OrderBook) Best(s Side) (*Order, bool) {
	var (
		level *priceLevel
		ok    bool
	)
	if s == Buy {
		_, level, ok = ob.bids.Max()
	} else {
		_, level, ok = ob.asks.Min()
	}
	if !ok {
		return nil, false
	}
	return level.head(), true
}

// BestOpposing returns the order an incoming order on side s would match first.
func (ob *OrderBook) BestOpposing(s Side) (*Order, bool) {
	return ob.Best(s.Opposite())
}

// ReduceOrRemove applies a fill of filled units to a resting order.
// The order keeps its queue position on a partial fill and leaves the book when
// nothing remains. Reports whether the order was removed.
func (ob *OrderBook) ReduceOrRemove(o *Order, filled int64) (bool, error) {
	if cur, ok := ob.index[o.ID]; !ok || cur != o {
		return false, fmt.Errorf("%w: id=%d", ErrNotResting, o.ID)
	}
	if filled <= 0 || filled > o.Remaining {
		return false, fmt.Errorf("%w: fill %d against remaining %d", ErrInvalidFill, filled, o.Remaining)
	}

	side := ob.levels(o.Side)
	level, ok := side.Get(o.Price)
	if !ok {
		return false, fmt.Errorf("%w: id=%d missing level %d", ErrNotResting, o.ID, o.Price)
	}

	o.Remaining -= filled
	level.qty -= filled
	ob.lastPrice = o.Price

	if o.Remaining > 0 {
		return false, nil
	}

	level.remove(o)
	delete(ob.index, o.ID)
	if level.empty() {
		side.Delete(o.Price)
	}
	return true, nil
}

func (ob *OrderBook) Get(id OrderID) (*Order, bool) {
	o, ok := ob.index[id]
	return o, ok
}

// Len returns the number of resting orders on both sides.
func (ob *OrderBook) Len() int { return len(ob.index) }

func (ob *OrderBook) LastPrice() int64 { return ob.lastPrice }

// BestBid returns the highest bid price, 0 if there are no bids.
func (ob *OrderBook) BestBid() int64 {
	price, _, ok := ob.bids.Max()
	if !ok {
		return 0
	}
	return price
}

// BestAsk returns the lowest ask price, 0 if there are no asks.
func (ob *OrderBook) BestAsk() int64 {
	price, _, ok := ob.asks.Min()
	if !ok {
		return 0
	}
	return price
}

// BidLevels returns bid levels best first (high to low).
func (ob *OrderBook) BidLevels() []PriceLevel {
	levels := make([]PriceLevel, 0, ob.bids.Len())
	ob.bids.Reverse(func(_ int64, l *priceLevel) bool {
		levels = append(levels, l.snapshot())
		return true
	})
	return levels
}

// AskLevels returns ask levels best first (low to high).
func (ob *OrderBook) AskLevels() []PriceLevel {
	levels := make([]PriceLevel, 0, ob.asks.Len())
	ob.asks.Scan(func(_ int64, l *priceLevel) bool {
		levels = append(levels, l.snapshot())
		return true
	})
	return levels
}

// Orders returns copies of the resting orders of side s in matching priority.
func (ob *OrderBook) Orders(s Side) []Order {
	var out []Order
	visit := func(_ int64, l *priceLevel) bool {
		for _, o := range l.orders {
			out = append(out, *o)
		}
		return true
	}
	if s == Buy {
		ob.bids.Reverse(visit)
	} else {
		ob.asks.Scan(visit)
	}
	return out
}
