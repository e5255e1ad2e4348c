package dex

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/uhyunpark/spotdex/pkg/app/core/asset"
	"github.com/uhyunpark/spotdex/pkg/app/core/ledger"
	"github.com/uhyunpark/spotdex/pkg/app/core/orderbook"
)

// FeederConfig controls synthetic order flow.
type FeederConfig struct {
	Interval   time.Duration  // how often a batch is submitted
	BatchSize  int            // orders per batch
	NumTraders int            // simulated traders
	Assets     []asset.Symbol // markets to trade; empty means every non-quote asset
	MidPrice   int64          // prices are drawn within ±5% of this
	FundBase   int64          // deposit per trader per traded asset
	FundQuote  int64          // quote deposit per trader
	Seed       int64
}

func DefaultFeederConfig() FeederConfig {
	return FeederConfig{
		Interval:   100 * time.Millisecond,
		BatchSize:  10,
		NumTraders: 20,
		MidPrice:   1_000,
		FundBase:   1_000_000,
		FundQuote:  1_000_000_000,
		Seed:       time.Now().UnixNano(),
	}
}

// GeneratedOrder is one synthetic order, not yet submitted.
type GeneratedOrder struct {
	Trader common.Address
	Asset  asset.Symbol
	Side   orderbook.Side
	Type   orderbook.OrderType
	Qty    int64
	Price  int64 // zero for market orders
}

// OrderGenerator draws random orders for a fixed set of traders.
type OrderGenerator struct {
	traders []common.Address
	assets  []asset.Symbol
	mid     int64
	rng     *rand.Rand
}

// NewOrderGenerator derives trader addresses deterministically, so a given seed
// replays the same flow.
func NewOrderGenerator(numTraders int, assets []asset.Symbol, mid int64, seed int64) *OrderGenerator {
	traders := make([]common.Address, numTraders)
	for i := range traders {
		traders[i] = common.BytesToAddress(crypto.Keccak256([]byte(fmt.Sprintf("feeder-trader-%d", i)))[12:])
	}
	return &OrderGenerator{
		traders: traders,
		assets:  assets,
		mid:     mid,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (g *OrderGenerator) Traders() []common.Address { return g.traders }

// Next draws one order: 80% limit, 20% market, either side with equal odds.
func (g *OrderGenerator) Next() GeneratedOrder {
	o := GeneratedOrder{
		Trader: g.traders[g.rng.Intn(len(g.traders))],
		Asset:  g.assets[g.rng.Intn(len(g.assets))],
		Side:   orderbook.Buy,
		Type:   orderbook.Limit,
		Qty:    int64(g.rng.Intn(100) + 1),
	}
	if g.rng.Intn(2) == 1 {
		o.Side = orderbook.Sell
	}
	if g.rng.Intn(100) < 20 {
		o.Type = orderbook.Market
		return o
	}

	spread := g.mid / 20
	price := g.mid
	if spread > 0 {
		price += g.rng.Int63n(2*spread+1) - spread
	}
	o.Price = max(price, 1)
	return o
}

func (g *OrderGenerator) Batch(n int) []GeneratedOrder {
	batch := make([]GeneratedOrder, n)
	for i := range batch {
		batch[i] = g.Next()
	}
	return batch
}

// Feeder pushes generated orders into an App for devnet load.
type Feeder struct {
	app *App
	gen *OrderGenerator
	cfg FeederConfig
	log *zap.SugaredLogger

	submitted int
	rejected  int
	trades    int
}

func NewFeeder(app *App, cfg FeederConfig, logger *zap.SugaredLogger) (*Feeder, error) {
	if cfg.NumTraders <= 0 || cfg.BatchSize <= 0 || cfg.Interval <= 0 {
		return nil, fmt.Errorf("feeder: traders, batch size and interval must be positive")
	}
	if len(cfg.Assets) == 0 {
		for _, sym := range app.ListAssets() {
			if sym != app.QuoteAsset() {
				cfg.Assets = append(cfg.Assets, sym)
			}
		}
	}
	if len(cfg.Assets) == 0 {
		return nil, fmt.Errorf("feeder: %w: no tradable assets", asset.ErrUnknownAsset)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Feeder{
		app: app,
		gen: NewOrderGenerator(cfg.NumTraders, cfg.Assets, cfg.MidPrice, cfg.Seed),
		cfg: cfg,
		log: logger,
	}, nil
}

// Fund deposits the configured starting balances for every simulated trader.
func (f *Feeder) Fund() error {
	for _, trader := range f.gen.Traders() {
		for _, sym := range f.cfg.Assets {
			if err := f.app.Deposit(trader, sym, f.cfg.FundBase); err != nil {
				return fmt.Errorf("fund %s %s: %w", trader.Hex(), sym, err)
			}
		}
		if err := f.app.Deposit(trader, f.app.QuoteAsset(), f.cfg.FundQuote); err != nil {
			return fmt.Errorf("fund %s %s: %w", trader.Hex(), f.app.QuoteAsset(), err)
		}
	}
	return nil
}

// Tick submits one batch. Orders the trader cannot afford are counted and skipped;
// any other error is returned.
func (f *Feeder) Tick() error {
	for _, o := range f.gen.Batch(f.cfg.BatchSize) {
		var err error
		if o.Type == orderbook.Limit {
			res, e := f.app.SubmitLimitOrder(o.Trader, o.Asset, o.Qty, o.Price, o.Side)
			f.trades += len(res.Trades)
			err = e
		} else {
			res, e := f.app.SubmitMarketOrder(o.Trader, o.Asset, o.Qty, o.Side)
			f.trades += len(res.Trades)
			err = e
		}
		f.submitted++
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			f.rejected++
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Run funds the traders and submits a batch every interval until ctx is done.
func (f *Feeder) Run(ctx context.Context) error {
	if err := f.Fund(); err != nil {
		return err
	}

	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()
	stats := time.NewTicker(10 * time.Second)
	defer stats.Stop()

	start := time.Now()
	f.log.Infow("feeder_started",
		"traders", f.cfg.NumTraders,
		"assets", f.cfg.Assets,
		"batch", f.cfg.BatchSize,
		"interval", f.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			elapsed := time.Since(start)
			f.log.Infow("feeder_stopped",
				"submitted", f.submitted,
				"rejected", f.rejected,
				"trades", f.trades,
				"elapsed", elapsed.Round(time.Second))
			return nil

		case <-ticker.C:
			if err := f.Tick(); err != nil {
				f.log.Errorw("feeder_failed", "err", err)
				return err
			}

		case <-stats.C:
			elapsed := time.Since(start)
			f.log.Infow("feeder_stats",
				"submitted", f.submitted,
				"rejected", f.rejected,
				"trades", f.trades,
				"orders_per_sec", float64(f.submitted)/elapsed.Seconds())
		}
	}
}

// Stats reports totals so far. Not safe to call while Run is active.
func (f *Feeder) Stats() (submitted, rejected, trades int) {
	return f.submitted, f.rejected, f.trades
}
