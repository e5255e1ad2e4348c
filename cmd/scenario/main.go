package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/uhyunpark/spotdex/pkg/app/core/asset"
	"github.com/uhyunpark/spotdex/pkg/app/core/engine"
	"github.com/uhyunpark/spotdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/spotdex/pkg/app/dex"
	"github.com/uhyunpark/spotdex/pkg/storage"
)

const (
	link asset.Symbol = "LINK"
	dai  asset.Symbol = "DAI"

	deposit = 10_000_000_000_000
)

type step struct {
	name  string
	typ   orderbook.OrderType
	side  orderbook.Side
	qty   int64
	price int64
}

// The reference sequence: one owner funds both assets and trades LINK against DAI.
var steps = []step{
	{"limit sell 50 @ 15", orderbook.Limit, orderbook.Sell, 50, 15},
	{"limit buy 45 @ 15", orderbook.Limit, orderbook.Buy, 45, 15},
	{"limit sell 150 @ 25", orderbook.Limit, orderbook.Sell, 150, 25},
	{"market buy 90", orderbook.Market, orderbook.Buy, 90, 0},
	{"limit buy 80 @ 34", orderbook.Limit, orderbook.Buy, 80, 34},
	{"market sell 250", orderbook.Market, orderbook.Sell, 250, 0},
	{"limit buy 450 @ 20", orderbook.Limit, orderbook.Buy, 450, 20},
}

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	owner := crypto.PubkeyToAddress(key.PublicKey)

	store, err := storage.OpenTradeStore("")
	if err != nil {
		return err
	}
	defer store.Close()

	app := dex.NewApp(dex.Options{QuoteAsset: dai, Store: store})

	// Step 1: register assets
	if err := app.RegisterAsset(link, common.HexToAddress("0x514910771AF9Ca656af840dff83E8264EcF986CA")); err != nil {
		return err
	}
	if err := app.RegisterAsset(dai, common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")); err != nil {
		return err
	}
	for i := range app.ListAssets() {
		a, _ := app.AssetAt(i)
		fmt.Printf("asset[%d] = %s (custody %s)\n", i, a.Symbol, a.Custody.Hex())
	}

	// Step 2: deposit
	fmt.Printf("\nOwner: %s\n", owner.Hex())
	for _, sym := range []asset.Symbol{link, dai} {
		if err := app.Deposit(owner, sym, deposit); err != nil {
			return err
		}
	}
	printBalances(app, owner)

	// Step 3: orders
	for _, s := range steps {
		var (
			res engine.Result
			err error
		)
		if s.typ == orderbook.Limit {
			res, err = app.SubmitLimitOrder(owner, link, s.qty, s.price, s.side)
		} else {
			res, err = app.SubmitMarketOrder(owner, link, s.qty, s.side)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}

		fmt.Printf("\n#%d %s -> %s (filled %d, left %d)\n", res.OrderID, s.name, res.State, res.Filled, res.Remaining)
		for _, t := range res.Trades {
			fmt.Printf("    trade %d: %d @ %d against order #%d\n", t.Seq, t.Qty, t.Price, t.MakerOrder)
		}
		printBook(app)
	}

	fmt.Println()
	printBalances(app, owner)

	trades, err := app.RecentTrades(link, 100)
	if err != nil {
		return err
	}
	fmt.Printf("trades recorded: %d\n", len(trades))
	fmt.Printf("state hash: %s\n", app.StateHash().Hex())
	return nil
}

func printBook(app *dex.App) {
	depth, err := app.Depth(link)
	if err != nil {
		return
	}
	for i := len(depth.Asks) - 1; i >= 0; i-- {
		fmt.Printf("    ask %6d x %d\n", depth.Asks[i].Price, depth.Asks[i].Qty)
	}
	for _, l := range depth.Bids {
		fmt.Printf("    bid %6d x %d\n", l.Price, l.Qty)
	}
}

func printBalances(app *dex.App, owner common.Address) {
	for _, sym := range app.ListAssets() {
		b, _ := app.Balance(owner, sym)
		fmt.Printf("  %-4s available=%d held=%d\n", sym, b.Available, b.Held)
	}
}
