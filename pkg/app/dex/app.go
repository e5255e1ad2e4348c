package dex

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/uhyunpark/spotdex/pkg/app/core/asset"
	"github.com/uhyunpark/spotdex/pkg/app/core/engine"
	"github.com/uhyunpark/spotdex/pkg/app/core/ledger"
	"github.com/uhyunpark/spotdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/spotdex/pkg/storage"
	"github.com/uhyunpark/spotdex/pkg/util"
)

// Custodian moves real funds out of the exchange's custody accounts.
type Custodian interface {
	Release(ctx context.Context, custody, to common.Address, amount int64) error
}

// NopCustodian accepts every release. Used when custody is handled off-node.
type NopCustodian struct{}

func (NopCustodian) Release(context.Context, common.Address, common.Address, int64) error { return nil }

type Options struct {
	QuoteAsset asset.Symbol
	Store      *storage.TradeStore // nil disables trade history
	Journal    storage.Journal
	Custodian  Custodian
	Clock      util.Clock
	Metrics    *Metrics
	Logger     *zap.SugaredLogger
}

// App is the exchange: asset registry, balance ledger and matching engine behind one
// surface. Order submission is assumed to come from an already-authenticated caller.
type App struct {
	log       *zap.SugaredLogger
	assets    *asset.Registry
	ledger    *ledger.Ledger
	engine    *engine.Engine
	store     *storage.TradeStore
	journal   storage.Journal
	custodian Custodian
	metrics   *Metrics

	hookMu  sync.RWMutex
	onOrder []func(engine.Result)
}

func NewApp(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Journal == nil {
		opts.Journal = storage.NewNopJournal()
	}
	if opts.Custodian == nil {
		opts.Custodian = NopCustodian{}
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}

	assets := asset.NewRegistry()
	l := ledger.New()
	return &App{
		log:       opts.Logger,
		assets:    assets,
		ledger:    l,
		engine:    engine.New(assets, l, opts.QuoteAsset, opts.Clock, opts.Logger.Named("engine")),
		store:     opts.Store,
		journal:   opts.Journal,
		custodian: opts.Custodian,
		metrics:   opts.Metrics,
	}
}

func (a *App) Metrics() *Metrics { return a.metrics }

func (a *App) QuoteAsset() asset.Symbol { return a.engine.QuoteAsset() }

// OnOrderProcessed registers fn to run after every admitted order, in the submitting
// goroutine. fn must not block.
func (a *App) OnOrderProcessed(fn func(engine.Result)) {
	a.hookMu.Lock()
	defer a.hookMu.Unlock()
	a.onOrder = append(a.onOrder, fn)
}

// ============================================================================
// Assets
// ============================================================================

func (a *App) RegisterAsset(symbol asset.Symbol, custody common.Address) error {
	as, err := a.assets.Register(symbol, custody)
	if err != nil {
		return err
	}
	a.log.Infow("asset_registered", "asset", as.Symbol, "custody", as.Custody.Hex(), "index", as.Index)
	return nil
}

// ListAssets returns registered symbols in registration order.
func (a *App) ListAssets() []asset.Symbol { return a.assets.List() }

func (a *App) Assets() []asset.Asset {
	out := make([]asset.Asset, 0, a.assets.Len())
	for i := 0; i < a.assets.Len(); i++ {
		as, err := a.assets.At(i)
		if err != nil {
			break
		}
		out = append(out, as)
	}
	return out
}

func (a *App) AssetAt(i int) (asset.Asset, error) { return a.assets.At(i) }

func (a *App) GetAsset(symbol asset.Symbol) (asset.Asset, error) { return a.assets.Get(symbol) }

// ResolveAsset returns the custody handle of symbol.
func (a *App) ResolveAsset(symbol asset.Symbol) (common.Address, error) {
	return a.assets.Resolve(symbol)
}

// ============================================================================
// Balances
// ============================================================================

// Deposit credits trader after the caller has confirmed the external transfer into
// the asset's custody account.
func (a *App) Deposit(trader common.Address, symbol asset.Symbol, amount int64) error {
	if !a.assets.Exists(symbol) {
		return fmt.Errorf("%w: %s", asset.ErrUnknownAsset, symbol)
	}
	if err := a.ledger.Credit(trader, symbol, amount); err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	a.metrics.deposits.WithLabelValues(string(symbol)).Add(float64(amount))
	a.log.Debugw("deposit", "trader", trader.Hex(), "asset", symbol, "amount", amount)
	return nil
}

// Withdraw debits trader's available balance and asks the custodian to send the funds
// out. If the custodian fails the debit is reverted.
func (a *App) Withdraw(ctx context.Context, trader common.Address, symbol asset.Symbol, amount int64) error {
	custody, err := a.assets.Resolve(symbol)
	if err != nil {
		return err
	}
	if err := a.ledger.Debit(trader, symbol, amount); err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	if err := a.custodian.Release(ctx, custody, trader, amount); err != nil {
		if cerr := a.ledger.Credit(trader, symbol, amount); cerr != nil {
			a.log.Errorw("withdraw_revert_failed", "trader", trader.Hex(), "asset", symbol, "amount", amount, "err", cerr)
		}
		a.log.Warnw("withdraw_failed", "trader", trader.Hex(), "asset", symbol, "amount", amount, "err", err)
		return fmt.Errorf("withdraw: custody release: %w", err)
	}
	a.metrics.withdrawals.WithLabelValues(string(symbol)).Add(float64(amount))
	a.log.Infow("withdraw", "trader", trader.Hex(), "asset", symbol, "amount", amount)
	return nil
}

// BalanceOf returns trader's available balance of symbol.
func (a *App) BalanceOf(trader common.Address, symbol asset.Symbol) (int64, error) {
	if !a.assets.Exists(symbol) {
		return 0, fmt.Errorf("%w: %s", asset.ErrUnknownAsset, symbol)
	}
	return a.ledger.BalanceOf(trader, symbol), nil
}

// Balance returns both the available and the held part.
func (a *App) Balance(trader common.Address, symbol asset.Symbol) (ledger.Balance, error) {
	if !a.assets.Exists(symbol) {
		return ledger.Balance{}, fmt.Errorf("%w: %s", asset.ErrUnknownAsset, symbol)
	}
	return a.ledger.Balance(trader, symbol), nil
}

func (a *App) Balances(trader common.Address) map[asset.Symbol]ledger.Balance {
	return a.ledger.BalancesOf(trader)
}

// ============================================================================
// Orders
// ============================================================================

func (a *App) SubmitLimitOrder(trader common.Address, symbol asset.Symbol, qty, price int64, side orderbook.Side) (engine.Result, error) {
	start := time.Now()
	res, err := a.engine.SubmitLimitOrder(trader, symbol, qty, price, side)
	a.afterSubmit(orderbook.Limit, side, res, err, time.Since(start))
	return res, err
}

func (a *App) SubmitMarketOrder(trader common.Address, symbol asset.Symbol, qty int64, side orderbook.Side) (engine.Result, error) {
	start := time.Now()
	res, err := a.engine.SubmitMarketOrder(trader, symbol, qty, side)
	a.afterSubmit(orderbook.Market, side, res, err, time.Since(start))
	return res, err
}

func (a *App) afterSubmit(typ orderbook.OrderType, side orderbook.Side, res engine.Result, err error, took time.Duration) {
	a.metrics.ordersSubmitted.WithLabelValues(typ.String(), side.String()).Inc()
	if err != nil {
		a.metrics.ordersRejected.WithLabelValues(rejectReason(err)).Inc()
		return
	}
	a.metrics.orderStates.WithLabelValues(res.State.String()).Inc()
	a.metrics.matchDuration.WithLabelValues(typ.String()).Observe(took.Seconds())

	for _, t := range res.Trades {
		a.metrics.trades.WithLabelValues(string(t.Asset)).Inc()
		a.metrics.tradedQty.WithLabelValues(string(t.Asset)).Add(float64(t.Qty))
	}
	if a.store != nil {
		// fills are already settled; a lost history record is not worth failing the order over
		if err := a.store.SaveTrades(res.Trades); err != nil {
			a.log.Warnw("trade_store_failed", "asset", res.Asset, "order", res.OrderID, "err", err)
		}
	}

	line := fmt.Sprintf("order id=%d asset=%s type=%s side=%s qty=%d filled=%d state=%s trades=%d",
		res.OrderID, res.Asset, typ, side, res.Qty, res.Filled, res.State, len(res.Trades))
	if err := a.journal.Append(line); err != nil {
		a.log.Warnw("journal_append_failed", "asset", res.Asset, "order", res.OrderID, "err", err)
	}

	a.hookMu.RLock()
	hooks := a.onOrder
	a.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(res)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, asset.ErrUnknownAsset):
		return "unknown_asset"
	case errors.Is(err, engine.ErrQuoteAsset):
		return "quote_asset"
	case errors.Is(err, engine.ErrOverflow):
		return "overflow"
	case errors.Is(err, engine.ErrInvalidOrder):
		return "invalid_order"
	default:
		return "other"
	}
}

// ============================================================================
// Queries
// ============================================================================

func (a *App) Depth(symbol asset.Symbol) (engine.BookSnapshot, error) {
	return a.engine.Depth(symbol)
}

// Order looks up a resting order by id.
func (a *App) Order(symbol asset.Symbol, id orderbook.OrderID) (orderbook.Order, bool, error) {
	return a.engine.Order(symbol, id)
}

func (a *App) RestingOrders(symbol asset.Symbol, side orderbook.Side) ([]orderbook.Order, error) {
	return a.engine.RestingOrders(symbol, side)
}

// RecentTrades returns up to limit trades of symbol, newest first. Without a trade
// store there is no history and the result is empty.
func (a *App) RecentTrades(symbol asset.Symbol, limit int) ([]engine.Trade, error) {
	if !a.assets.Exists(symbol) {
		return nil, fmt.Errorf("%w: %s", asset.ErrUnknownAsset, symbol)
	}
	if a.store == nil {
		return nil, nil
	}
	return a.store.LoadRecentTrades(symbol, limit)
}

// StateHash is a Keccak-256 digest of the registered assets, every book's depth and
// every ledger balance. Identical order sequences give identical hashes.
//
// Books and ledger are read one after another, so the hash is only meaningful while
// no orders are being submitted.
func (a *App) StateHash() common.Hash {
	var buf []byte
	putInt := func(v int64) {
		buf = binary.BigEndian.AppendUint64(buf, uint64(v))
	}
	putString := func(s string) {
		putInt(int64(len(s)))
		buf = append(buf, s...)
	}

	// 1. assets in registration order
	assets := a.Assets()
	for _, as := range assets {
		putString(string(as.Symbol))
		buf = append(buf, as.Custody.Bytes()...)
	}

	// 2. books, bids high to low then asks low to high
	for _, as := range assets {
		if as.Symbol == a.QuoteAsset() {
			continue
		}
		depth, err := a.engine.Depth(as.Symbol)
		if err != nil {
			continue
		}
		putString(string(as.Symbol))
		putInt(int64(len(depth.Bids)))
		for _, l := range depth.Bids {
			putInt(l.Price)
			putInt(l.Qty)
		}
		putInt(int64(len(depth.Asks)))
		for _, l := range depth.Asks {
			putInt(l.Price)
			putInt(l.Qty)
		}
	}

	// 3. balances, sorted by trader then asset
	for _, e := range a.ledger.Entries() {
		buf = append(buf, e.Trader.Bytes()...)
		putString(string(e.Asset))
		putInt(e.Balance.Available)
		putInt(e.Balance.Held)
	}

	return crypto.Keccak256Hash(buf)
}
