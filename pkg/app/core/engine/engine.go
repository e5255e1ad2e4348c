package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/uhyunpark/spotdex/pkg/app/core/asset"
	"github.com/uhyunpark/spotdex/pkg/app/core/ledger"
	"github.com/uhyunpark/spotdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/spotdex/pkg/util"
)

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrQuoteAsset   = errors.New("quote asset is not tradable against itself")
	ErrOverflow     = errors.New("order notional overflows")
)

// errUnfunded stops a market order whose trader cannot pay for another unit.
var errUnfunded = errors.New("market order out of funds")

// market pairs a book with the lock that serializes every submission on it.
type market struct {
	mu   sync.RWMutex
	book *orderbook.OrderBook
}

// Engine matches incoming orders against per-asset books and settles fills in the
// ledger. Every asset trades against one quote asset.
//
// A submission holds its asset's lock from admission until the remainder is rested or
// discarded, so submissions on one asset are fully serialized while different assets
// match in parallel. Ledger postings for each fill commit in a single ledger.Update.
type Engine struct {
	log    *zap.SugaredLogger
	assets *asset.Registry
	ledger *ledger.Ledger
	quote  asset.Symbol
	clock  util.Clock

	mu      sync.Mutex
	markets map[asset.Symbol]*market

	orderSeq atomic.Uint64
	tradeSeq atomic.Uint64
}

func New(assets *asset.Registry, l *ledger.Ledger, quote asset.Symbol, clock util.Clock, logger *zap.SugaredLogger) *Engine {
	if clock == nil {
		clock = util.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		log:     logger,
		assets:  assets,
		ledger:  l,
		quote:   quote,
		clock:   clock,
		markets: make(map[asset.Symbol]*market),
	}
}

func (e *Engine) QuoteAsset() asset.Symbol { return e.quote }

// SubmitLimitOrder admits, matches and, if anything is left, rests a limit order.
// Admission holds qty of the asset (sell) or qty*price of the quote asset (buy);
// if the trader cannot cover it the order is rejected with ledger.ErrInsufficientBalance
// and nothing changes.
func (e *Engine) SubmitLimitOrder(trader common.Address, symbol asset.Symbol, qty, price int64, side orderbook.Side) (Result, error) {
	return e.submit(&orderbook.Order{
		Asset:     symbol,
		Side:      side,
		Type:      orderbook.Limit,
		Trader:    trader,
		Price:     price,
		Qty:       qty,
		Remaining: qty,
	})
}

// SubmitMarketOrder matches at whatever the book offers and drops the unfilled rest.
// Market orders are funded fill by fill: each fill is capped by what the trader can
// pay at the maker's price, and matching stops once nothing more can be funded.
func (e *Engine) SubmitMarketOrder(trader common.Address, symbol asset.Symbol, qty int64, side orderbook.Side) (Result, error) {
	return e.submit(&orderbook.Order{
		Asset:     symbol,
		Side:      side,
		Type:      orderbook.Market,
		Trader:    trader,
		Qty:       qty,
		Remaining: qty,
	})
}

func (e *Engine) submit(o *orderbook.Order) (Result, error) {
	if err := e.validate(o); err != nil {
		e.reject(o, err)
		return Result{}, err
	}
	m, err := e.market(o.Asset)
	if err != nil {
		e.reject(o, err)
		return Result{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if o.Type == orderbook.Limit {
		if err := e.hold(o); err != nil {
			e.reject(o, err)
			return Result{}, err
		}
	}

	// assigned under the book lock so time priority follows processing order
	o.ID = orderbook.OrderID(e.orderSeq.Add(1))
	o.CreatedAt = e.clock.Now().UnixMilli()

	res := Result{
		OrderID: o.ID,
		Asset:   o.Asset,
		Side:    o.Side,
		Type:    o.Type,
		Qty:     o.Qty,
	}

	for o.Remaining > 0 {
		maker, ok := m.book.BestOpposing(o.Side)
		if !ok {
			break
		}
		if o.Type == orderbook.Limit && !crosses(o, maker.Price) {
			break
		}

		trade, err := e.fill(m.book, o, maker)
		if err != nil {
			if !errors.Is(err, errUnfunded) {
				e.log.Errorw("fill_failed", "asset", o.Asset, "taker", o.ID, "maker", maker.ID, "err", err)
			}
			break
		}
		res.Trades = append(res.Trades, trade)
	}

	res.Filled = o.Filled()
	res.Remaining = o.Remaining

	switch {
	case o.Remaining == 0:
		res.State = Filled
	case o.Type == orderbook.Limit:
		if err := m.book.Insert(o); err != nil {
			// unreachable for an admitted limit order
			if o.Escrow > 0 {
				_ = e.ledger.Release(o.Trader, e.offered(o), o.Escrow)
			}
			e.log.Errorw("rest_failed", "asset", o.Asset, "order", o.ID, "err", err)
			return res, err
		}
		res.State = UnmatchedResting
		if res.Filled > 0 {
			res.State = PartiallyResting
		}
	default:
		res.State = UnmatchedDiscarded
		if res.Filled > 0 {
			res.State = PartiallyDiscarded
		}
	}

	e.log.Debugw("order_processed",
		"asset", o.Asset,
		"order", o.ID,
		"trader", o.Trader.Hex(),
		"type", o.Type.String(),
		"side", o.Side.String(),
		"price", o.Price,
		"qty", o.Qty,
		"filled", res.Filled,
		"trades", len(res.Trades),
		"state", res.State.String())

	return res, nil
}

func (e *Engine) validate(o *orderbook.Order) error {
	if !o.Side.Valid() {
		return fmt.Errorf("%w: side %d", ErrInvalidOrder, o.Side)
	}
	if o.Qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidOrder, o.Qty)
	}
	if o.Type == orderbook.Limit && o.Price <= 0 {
		return fmt.Errorf("%w: limit price must be positive, got %d", ErrInvalidOrder, o.Price)
	}
	if o.Asset == e.quote {
		return fmt.Errorf("%w: %s", ErrQuoteAsset, o.Asset)
	}
	return nil
}

// market returns the book of a registered asset, creating it on first use.
func (e *Engine) market(symbol asset.Symbol) (*market, error) {
	if symbol == e.quote {
		return nil, fmt.Errorf("%w: %s", ErrQuoteAsset, symbol)
	}
	if !e.assets.Exists(symbol) {
		return nil, fmt.Errorf("%w: %s", asset.ErrUnknownAsset, symbol)
	}
	if !e.assets.Exists(e.quote) {
		return nil, fmt.Errorf("%w: quote asset %s", asset.ErrUnknownAsset, e.quote)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.markets[symbol]
	if !ok {
		m = &market{book: orderbook.NewOrderBook(symbol)}
		e.markets[symbol] = m
		e.log.Infow("market_opened", "asset", symbol, "quote", e.quote)
	}
	return m, nil
}

// offered is the asset an order pays with.
func (e *Engine) offered(o *orderbook.Order) asset.Symbol {
	if o.Side == orderbook.Buy {
		return e.quote
	}
	return o.Asset
}

// hold moves a limit order's full cost into escrow. The notional is checked for
// both sides since every fill against the order settles qty*price.
func (e *Engine) hold(o *orderbook.Order) error {
	n, err := notional(o.Qty, o.Price)
	if err != nil {
		return err
	}
	amount := o.Qty
	if o.Side == orderbook.Buy {
		amount = n
	}
	if err := e.ledger.Hold(o.Trader, e.offered(o), amount); err != nil {
		return err
	}
	o.Escrow = amount
	return nil
}

func crosses(o *orderbook.Order, makerPrice int64) bool {
	if o.Side == orderbook.Buy {
		return makerPrice <= o.Price
	}
	return makerPrice >= o.Price
}

// fill settles one match at the maker's price and updates both orders.
// Ledger postings for both traders commit together or not at all.
func (e *Engine) fill(book *orderbook.OrderBook, taker, maker *orderbook.Order) (Trade, error) {
	price := maker.Price
	qty := min(taker.Remaining, maker.Remaining)

	buyer, seller := taker, maker
	if taker.Side == orderbook.Sell {
		buyer, seller = maker, taker
	}

	var buyerEscrow, sellerEscrow int64
	err := e.ledger.Update(func(tx *ledger.Tx) error {
		if taker.Type == orderbook.Market {
			qty = e.fundable(tx, taker, price, qty)
			if qty == 0 {
				return errUnfunded
			}
		}
		// fits: qty <= maker.Qty and maker.Qty*maker.Price was checked at admission
		cost := qty * price

		// base leg: seller -> buyer
		if seller.Type == orderbook.Limit {
			if err := tx.SpendHeld(seller.Trader, taker.Asset, qty); err != nil {
				return err
			}
			sellerEscrow = qty
		} else if err := tx.Debit(seller.Trader, taker.Asset, qty); err != nil {
			return err
		}
		if err := tx.Credit(buyer.Trader, taker.Asset, qty); err != nil {
			return err
		}

		// quote leg: buyer -> seller
		if buyer.Type == orderbook.Limit {
			heldAtLimit := qty * buyer.Price
			if err := tx.SpendHeld(buyer.Trader, e.quote, cost); err != nil {
				return err
			}
			if improvement := heldAtLimit - cost; improvement > 0 {
				if err := tx.Release(buyer.Trader, e.quote, improvement); err != nil {
					return err
				}
			}
			buyerEscrow = heldAtLimit
		} else if err := tx.Debit(buyer.Trader, e.quote, cost); err != nil {
			return err
		}
		return tx.Credit(seller.Trader, e.quote, cost)
	})
	if err != nil {
		return Trade{}, err
	}

	buyer.Escrow -= buyerEscrow
	seller.Escrow -= sellerEscrow
	taker.Remaining -= qty
	if _, err := book.ReduceOrRemove(maker, qty); err != nil {
		// book and ledger disagree
		return Trade{}, fmt.Errorf("reduce maker %d: %w", maker.ID, err)
	}

	trade := Trade{
		ID:         uuid.New(),
		Seq:        e.tradeSeq.Add(1),
		Asset:      taker.Asset,
		Price:      price,
		Qty:        qty,
		TakerSide:  taker.Side,
		TakerOrder: taker.ID,
		MakerOrder: maker.ID,
		Taker:      taker.Trader,
		Maker:      maker.Trader,
		Timestamp:  e.clock.Now().UnixMilli(),
	}
	e.log.Debugw("trade_executed",
		"asset", trade.Asset,
		"seq", trade.Seq,
		"price", trade.Price,
		"qty", trade.Qty,
		"taker_order", trade.TakerOrder,
		"maker_order", trade.MakerOrder)
	return trade, nil
}

// fundable caps a market order's next fill by what its trader holds right now.
func (e *Engine) fundable(tx *ledger.Tx, taker *orderbook.Order, price, qty int64) int64 {
	if taker.Side == orderbook.Buy {
		return min(qty, tx.Balance(taker.Trader, e.quote).Available/price)
	}
	return min(qty, tx.Balance(taker.Trader, taker.Asset).Available)
}

func (e *Engine) reject(o *orderbook.Order, err error) {
	e.log.Infow("order_rejected",
		"asset", o.Asset,
		"trader", o.Trader.Hex(),
		"type", o.Type.String(),
		"side", o.Side.String(),
		"price", o.Price,
		"qty", o.Qty,
		"err", err)
}

// notional returns qty*price, failing if it does not fit in an int64 balance.
func notional(qty, price int64) (int64, error) {
	n, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(uint64(qty)), uint256.NewInt(uint64(price)))
	if overflow || !n.IsUint64() || n.Uint64() > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d x %d", ErrOverflow, qty, price)
	}
	return int64(n.Uint64()), nil
}

// Depth returns the aggregated book of one asset. It waits for any in-flight
// submission on that asset, so it never sees a half-matched order.
func (e *Engine) Depth(symbol asset.Symbol) (BookSnapshot, error) {
	m, err := e.market(symbol)
	if err != nil {
		return BookSnapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return BookSnapshot{
		Asset:     m.book.Symbol(),
		Bids:      m.book.BidLevels(),
		Asks:      m.book.AskLevels(),
		BestBid:   m.book.BestBid(),
		BestAsk:   m.book.BestAsk(),
		LastPrice: m.book.LastPrice(),
	}, nil
}

// Order returns a copy of a resting order. ok is false once the order has filled
// or if it never rested on this asset's book.
func (e *Engine) Order(symbol asset.Symbol, id orderbook.OrderID) (orderbook.Order, bool, error) {
	m, err := e.market(symbol)
	if err != nil {
		return orderbook.Order{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.book.Get(id)
	if !ok {
		return orderbook.Order{}, false, nil
	}
	return *o, true, nil
}

// RestingOrders returns copies of one side's resting orders in matching priority.
func (e *Engine) RestingOrders(symbol asset.Symbol, side orderbook.Side) ([]orderbook.Order, error) {
	m, err := e.market(symbol)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.Orders(side), nil
}

// Markets lists the assets that have a book, in registration order.
func (e *Engine) Markets() []asset.Symbol {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []asset.Symbol
	for _, sym := range e.assets.List() {
		if _, ok := e.markets[sym]; ok {
			out = append(out, sym)
		}
	}
	return out
}
