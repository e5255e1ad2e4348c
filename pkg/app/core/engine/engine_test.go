package engine

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/uhyunpark/spotdex/pkg/app/core/asset"
	"github.com/uhyunpark/spotdex/pkg/app/core/ledger"
	"github.com/uhyunpark/spotdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/spotdex/pkg/util"
)

const (
	link asset.Symbol = "LINK"
	uni  asset.Symbol = "UNI"
	dai  asset.Symbol = "DAI"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca201")
)

type fixture struct {
	eng      *Engine
	ledger   *ledger.Ledger
	clock    *util.ManualClock
	deposits map[asset.Symbol]int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := asset.NewRegistry()
	for _, sym := range []asset.Symbol{link, uni, dai} {
		_, err := reg.Register(sym, common.Address{})
		require.NoError(t, err)
	}
	l := ledger.New()
	clock := util.NewManualClock(time.Unix(1_700_000_000, 0))
	return &fixture{
		eng:      New(reg, l, dai, clock, zaptest.NewLogger(t).Sugar()),
		ledger:   l,
		clock:    clock,
		deposits: make(map[asset.Symbol]int64),
	}
}

func (f *fixture) fund(t *testing.T, trader common.Address, sym asset.Symbol, amount int64) {
	t.Helper()
	require.NoError(t, f.ledger.Credit(trader, sym, amount))
	f.deposits[sym] += amount
}

// conserved checks that matching neither created nor destroyed value.
func (f *fixture) conserved(t *testing.T) {
	t.Helper()
	for sym, total := range f.deposits {
		assert.Equal(t, total, f.ledger.Supply(sym), "supply of %s", sym)
	}
	for _, e := range f.ledger.Entries() {
		assert.GreaterOrEqual(t, e.Balance.Available, int64(0), "%s %s available", e.Trader.Hex(), e.Asset)
		assert.GreaterOrEqual(t, e.Balance.Held, int64(0), "%s %s held", e.Trader.Hex(), e.Asset)
	}
}

func TestLimitBuyFillsAgainstRestingSell(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, link, 50)
	f.fund(t, bob, dai, 45*15)

	sell, err := f.eng.SubmitLimitOrder(alice, link, 50, 15, orderbook.Sell)
	require.NoError(t, err)
	assert.Equal(t, UnmatchedResting, sell.State)

	buy, err := f.eng.SubmitLimitOrder(bob, link, 45, 15, orderbook.Buy)
	require.NoError(t, err)
	assert.Equal(t, Filled, buy.State)
	require.Len(t, buy.Trades, 1)
	assert.Equal(t, int64(45), buy.Trades[0].Qty)
	assert.Equal(t, int64(15), buy.Trades[0].Price)
	assert.Equal(t, sell.OrderID, buy.Trades[0].MakerOrder)

	asks, err := f.eng.RestingOrders(link, orderbook.Sell)
	require.NoError(t, err)
	require.Len(t, asks, 1)
	assert.Equal(t, sell.OrderID, asks[0].ID)
	assert.Equal(t, int64(5), asks[0].Remaining)
	assert.Equal(t, int64(15), asks[0].Price)
	assert.Equal(t, int64(5), asks[0].Escrow)

	assert.Equal(t, ledger.Balance{Available: 45}, f.ledger.Balance(bob, link))
	assert.Equal(t, ledger.Balance{}, f.ledger.Balance(bob, dai))
	assert.Equal(t, ledger.Balance{Available: 0, Held: 5}, f.ledger.Balance(alice, link))
	assert.Equal(t, ledger.Balance{Available: 675}, f.ledger.Balance(alice, dai))
	f.conserved(t)
}

func TestMarketBuyFillsAgainstRestingSell(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, link, 150)
	f.fund(t, bob, dai, 90*25)

	sell, err := f.eng.SubmitLimitOrder(alice, link, 150, 25, orderbook.Sell)
	require.NoError(t, err)

	buy, err := f.eng.SubmitMarketOrder(bob, link, 90, orderbook.Buy)
	require.NoError(t, err)
	assert.Equal(t, Filled, buy.State)
	assert.Equal(t, int64(90), buy.Filled)
	require.Len(t, buy.Trades, 1)
	assert.Equal(t, int64(25), buy.Trades[0].Price)

	asks, err := f.eng.RestingOrders(link, orderbook.Sell)
	require.NoError(t, err)
	require.Len(t, asks, 1)
	assert.Equal(t, sell.OrderID, asks[0].ID)
	assert.Equal(t, int64(60), asks[0].Remaining)

	assert.Equal(t, int64(90), f.ledger.BalanceOf(bob, link))
	assert.Equal(t, int64(0), f.ledger.BalanceOf(bob, dai))
	assert.Equal(t, int64(2250), f.ledger.BalanceOf(alice, dai))
	f.conserved(t)
}

func TestMarketSellRemainderDiscarded(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, dai, 80*34)
	f.fund(t, bob, link, 250)

	_, err := f.eng.SubmitLimitOrder(alice, link, 80, 34, orderbook.Buy)
	require.NoError(t, err)

	sell, err := f.eng.SubmitMarketOrder(bob, link, 250, orderbook.Sell)
	require.NoError(t, err)
	assert.Equal(t, PartiallyDiscarded, sell.State)
	assert.Equal(t, int64(80), sell.Filled)
	assert.Equal(t, int64(170), sell.Remaining)
	require.Len(t, sell.Trades, 1)
	assert.Equal(t, int64(34), sell.Trades[0].Price)

	depth, err := f.eng.Depth(link)
	require.NoError(t, err)
	assert.Empty(t, depth.Bids)
	assert.Empty(t, depth.Asks, "market remainder never rests")
	assert.Equal(t, int64(34), depth.LastPrice)

	// the unfilled 170 never left bob's balance
	assert.Equal(t, ledger.Balance{Available: 170}, f.ledger.Balance(bob, link))
	assert.Equal(t, int64(80*34), f.ledger.BalanceOf(bob, dai))
	f.conserved(t)

	// scenario continues: a buy limit with no asks rests in full
	f.fund(t, carol, dai, 450*20)
	buy, err := f.eng.SubmitLimitOrder(carol, link, 450, 20, orderbook.Buy)
	require.NoError(t, err)
	assert.Equal(t, UnmatchedResting, buy.State)
	assert.Empty(t, buy.Trades)

	depth, err = f.eng.Depth(link)
	require.NoError(t, err)
	assert.Equal(t, []orderbook.PriceLevel{{Price: 20, Qty: 450, Orders: 1}}, depth.Bids)
	assert.Equal(t, ledger.Balance{Held: 9000}, f.ledger.Balance(carol, dai))
	f.conserved(t)
}

func TestPriceTimePriority(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, link, 100)
	f.fund(t, bob, link, 100)
	f.fund(t, carol, dai, 1000)

	a, err := f.eng.SubmitLimitOrder(alice, link, 100, 15, orderbook.Sell)
	require.NoError(t, err)
	b, err := f.eng.SubmitLimitOrder(bob, link, 100, 15, orderbook.Sell)
	require.NoError(t, err)
	require.Less(t, a.OrderID, b.OrderID)

	res, err := f.eng.SubmitMarketOrder(carol, link, 40, orderbook.Buy)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, a.OrderID, res.Trades[0].MakerOrder)

	asks, err := f.eng.RestingOrders(link, orderbook.Sell)
	require.NoError(t, err)
	require.Len(t, asks, 2)
	assert.Equal(t, int64(60), asks[0].Remaining)
	assert.Equal(t, int64(100), asks[1].Remaining, "second order at the same price is untouched")
	f.conserved(t)
}

func TestBetterPriceBeatsEarlierOrder(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, link, 10)
	f.fund(t, bob, link, 10)
	f.fund(t, carol, dai, 1000)

	_, err := f.eng.SubmitLimitOrder(alice, link, 10, 16, orderbook.Sell)
	require.NoError(t, err)
	cheaper, err := f.eng.SubmitLimitOrder(bob, link, 10, 14, orderbook.Sell)
	require.NoError(t, err)

	res, err := f.eng.SubmitMarketOrder(carol, link, 15, orderbook.Buy)
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, cheaper.OrderID, res.Trades[0].MakerOrder)
	assert.Equal(t, int64(14), res.Trades[0].Price)
	assert.Equal(t, int64(16), res.Trades[1].Price)
	assert.Equal(t, int64(5), res.Trades[1].Qty)
	assert.Less(t, res.Trades[0].Seq, res.Trades[1].Seq)
	f.conserved(t)
}

func TestLimitBuyDoesNotCrossAboveLimit(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, link, 20)
	f.fund(t, bob, dai, 20*20)

	_, err := f.eng.SubmitLimitOrder(alice, link, 10, 19, orderbook.Sell)
	require.NoError(t, err)
	_, err = f.eng.SubmitLimitOrder(alice, link, 10, 21, orderbook.Sell)
	require.NoError(t, err)

	res, err := f.eng.SubmitLimitOrder(bob, link, 20, 20, orderbook.Buy)
	require.NoError(t, err)
	assert.Equal(t, PartiallyResting, res.State)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(19), res.Trades[0].Price)
	assert.Equal(t, int64(10), res.Remaining)

	depth, err := f.eng.Depth(link)
	require.NoError(t, err)
	assert.Equal(t, []orderbook.PriceLevel{{Price: 20, Qty: 10, Orders: 1}}, depth.Bids)
	assert.Equal(t, []orderbook.PriceLevel{{Price: 21, Qty: 10, Orders: 1}}, depth.Asks)
	f.conserved(t)
}

func TestLimitSellDoesNotCrossBelowLimit(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, dai, 1000)
	f.fund(t, bob, link, 10)

	_, err := f.eng.SubmitLimitOrder(alice, link, 10, 9, orderbook.Buy)
	require.NoError(t, err)

	res, err := f.eng.SubmitLimitOrder(bob, link, 10, 10, orderbook.Sell)
	require.NoError(t, err)
	assert.Equal(t, UnmatchedResting, res.State)
	assert.Empty(t, res.Trades)
	f.conserved(t)
}

func TestBuyPriceImprovementReleasesEscrow(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, link, 10)
	f.fund(t, bob, dai, 10*20)

	_, err := f.eng.SubmitLimitOrder(alice, link, 10, 12, orderbook.Sell)
	require.NoError(t, err)

	res, err := f.eng.SubmitLimitOrder(bob, link, 10, 20, orderbook.Buy)
	require.NoError(t, err)
	assert.Equal(t, Filled, res.State)

	// paid 10*12 at the maker's price, the rest of the 10*20 hold comes back
	assert.Equal(t, ledger.Balance{Available: 80}, f.ledger.Balance(bob, dai))
	assert.Equal(t, int64(120), f.ledger.BalanceOf(alice, dai))
	f.conserved(t)
}

func TestRestingBuyEscrowTracksFills(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, dai, 10*30)
	f.fund(t, bob, link, 4)

	buy, err := f.eng.SubmitLimitOrder(alice, link, 10, 30, orderbook.Buy)
	require.NoError(t, err)

	_, err = f.eng.SubmitMarketOrder(bob, link, 4, orderbook.Sell)
	require.NoError(t, err)

	bids, err := f.eng.RestingOrders(link, orderbook.Buy)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, buy.OrderID, bids[0].ID)
	assert.Equal(t, int64(6*30), bids[0].Escrow)
	assert.Equal(t, ledger.Balance{Held: 180}, f.ledger.Balance(alice, dai))
	f.conserved(t)
}

func TestAdmissionRejectsUnderfundedLimit(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, link, 10)
	f.fund(t, bob, dai, 100)

	_, err := f.eng.SubmitLimitOrder(alice, link, 11, 15, orderbook.Sell)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	_, err = f.eng.SubmitLimitOrder(bob, link, 10, 11, orderbook.Buy)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	// no side effects: balances untouched, nothing rests, no id consumed
	assert.Equal(t, ledger.Balance{Available: 10}, f.ledger.Balance(alice, link))
	assert.Equal(t, ledger.Balance{Available: 100}, f.ledger.Balance(bob, dai))
	depth, err := f.eng.Depth(link)
	require.NoError(t, err)
	assert.Empty(t, depth.Bids)
	assert.Empty(t, depth.Asks)

	res, err := f.eng.SubmitLimitOrder(alice, link, 10, 15, orderbook.Sell)
	require.NoError(t, err)
	assert.Equal(t, orderbook.OrderID(1), res.OrderID)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, link, 100)
	f.fund(t, alice, dai, 100)

	tests := []struct {
		name   string
		submit func() (Result, error)
		want   error
	}{
		{
			name:   "zero quantity",
			submit: func() (Result, error) { return f.eng.SubmitLimitOrder(alice, link, 0, 10, orderbook.Sell) },
			want:   ErrInvalidOrder,
		},
		{
			name:   "negative market quantity",
			submit: func() (Result, error) { return f.eng.SubmitMarketOrder(alice, link, -1, orderbook.Buy) },
			want:   ErrInvalidOrder,
		},
		{
			name:   "zero limit price",
			submit: func() (Result, error) { return f.eng.SubmitLimitOrder(alice, link, 1, 0, orderbook.Buy) },
			want:   ErrInvalidOrder,
		},
		{
			name:   "bad side",
			submit: func() (Result, error) { return f.eng.SubmitLimitOrder(alice, link, 1, 1, orderbook.Side(3)) },
			want:   ErrInvalidOrder,
		},
		{
			name:   "unknown asset",
			submit: func() (Result, error) { return f.eng.SubmitLimitOrder(alice, "WBTC", 1, 1, orderbook.Sell) },
			want:   asset.ErrUnknownAsset,
		},
		{
			name:   "unknown asset market",
			submit: func() (Result, error) { return f.eng.SubmitMarketOrder(alice, "WBTC", 1, orderbook.Sell) },
			want:   asset.ErrUnknownAsset,
		},
		{
			name:   "quote asset",
			submit: func() (Result, error) { return f.eng.SubmitLimitOrder(alice, dai, 1, 1, orderbook.Sell) },
			want:   ErrQuoteAsset,
		},
		{
			name:   "notional overflow",
			submit: func() (Result, error) { return f.eng.SubmitLimitOrder(alice, link, 1<<40, 1<<40, orderbook.Buy) },
			want:   ErrOverflow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.submit()
			require.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, int64(100), f.ledger.BalanceOf(alice, link))
	assert.Equal(t, int64(100), f.ledger.BalanceOf(alice, dai))
}

func TestUnderfundedMarketBuyStopsAtFunds(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, link, 100)
	f.fund(t, bob, dai, 100)

	_, err := f.eng.SubmitLimitOrder(alice, link, 100, 15, orderbook.Sell)
	require.NoError(t, err)

	res, err := f.eng.SubmitMarketOrder(bob, link, 50, orderbook.Buy)
	require.NoError(t, err)
	assert.Equal(t, PartiallyDiscarded, res.State)
	assert.Equal(t, int64(6), res.Filled) // floor(100 / 15)
	assert.Equal(t, int64(44), res.Remaining)
	assert.Equal(t, int64(10), f.ledger.BalanceOf(bob, dai))
	assert.Equal(t, int64(6), f.ledger.BalanceOf(bob, link))
	f.conserved(t)
}

func TestUnfundedMarketOrderDiscarded(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, link, 10)
	f.fund(t, alice, dai, 1000)

	_, err := f.eng.SubmitLimitOrder(alice, link, 10, 15, orderbook.Sell)
	require.NoError(t, err)
	_, err = f.eng.SubmitLimitOrder(alice, link, 10, 5, orderbook.Buy)
	require.NoError(t, err)

	buy, err := f.eng.SubmitMarketOrder(bob, link, 5, orderbook.Buy)
	require.NoError(t, err)
	assert.Equal(t, UnmatchedDiscarded, buy.State)

	sell, err := f.eng.SubmitMarketOrder(bob, link, 5, orderbook.Sell)
	require.NoError(t, err)
	assert.Equal(t, UnmatchedDiscarded, sell.State)
	assert.Empty(t, sell.Trades)
	f.conserved(t)
}

func TestMarketOrderAgainstEmptyBook(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, dai, 100)

	res, err := f.eng.SubmitMarketOrder(alice, link, 5, orderbook.Buy)
	require.NoError(t, err)
	assert.Equal(t, UnmatchedDiscarded, res.State)
	assert.Equal(t, int64(5), res.Remaining)

	depth, err := f.eng.Depth(link)
	require.NoError(t, err)
	assert.Empty(t, depth.Bids)
	assert.Equal(t, int64(100), f.ledger.BalanceOf(alice, dai))
}

func TestSelfMatch(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, link, 10)
	f.fund(t, alice, dai, 10*15)

	_, err := f.eng.SubmitLimitOrder(alice, link, 10, 15, orderbook.Sell)
	require.NoError(t, err)
	res, err := f.eng.SubmitLimitOrder(alice, link, 10, 15, orderbook.Buy)
	require.NoError(t, err)
	assert.Equal(t, Filled, res.State)

	assert.Equal(t, ledger.Balance{Available: 10}, f.ledger.Balance(alice, link))
	assert.Equal(t, ledger.Balance{Available: 150}, f.ledger.Balance(alice, dai))
	f.conserved(t)
}

func TestTradesAreTimestampedByClock(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, link, 2)
	f.fund(t, bob, dai, 20)

	_, err := f.eng.SubmitLimitOrder(alice, link, 2, 10, orderbook.Sell)
	require.NoError(t, err)
	res, err := f.eng.SubmitMarketOrder(bob, link, 1, orderbook.Buy)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, time.Unix(1_700_000_000, 0).UnixMilli(), tr.Timestamp)
	assert.Equal(t, bob, tr.Taker)
	assert.Equal(t, alice, tr.Maker)
	assert.Equal(t, orderbook.Buy, tr.TakerSide)
	assert.Equal(t, int64(10), tr.Notional())
	assert.NotEqual(t, [16]byte{}, [16]byte(tr.ID))

	later := f.clock.Advance(time.Second)
	res, err = f.eng.SubmitMarketOrder(bob, link, 1, orderbook.Buy)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, later.UnixMilli(), res.Trades[0].Timestamp)
	assert.Greater(t, res.Trades[0].Seq, tr.Seq)
	assert.NotEqual(t, tr.ID, res.Trades[0].ID)
}

func TestMarketsOpenLazily(t *testing.T) {
	f := newFixture(t)
	assert.Empty(t, f.eng.Markets())

	_, err := f.eng.Depth(uni)
	require.NoError(t, err)
	_, err = f.eng.Depth(link)
	require.NoError(t, err)
	assert.Equal(t, []asset.Symbol{link, uni}, f.eng.Markets())
}

func TestDepthAndOrderLookup(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, link, 10)
	f.fund(t, bob, dai, 198)

	sell, err := f.eng.SubmitLimitOrder(alice, link, 10, 15, orderbook.Sell)
	require.NoError(t, err)
	_, err = f.eng.SubmitLimitOrder(bob, link, 4, 12, orderbook.Buy)
	require.NoError(t, err)

	depth, err := f.eng.Depth(link)
	require.NoError(t, err)
	assert.Equal(t, link, depth.Asset)
	assert.Equal(t, int64(12), depth.BestBid)
	assert.Equal(t, int64(15), depth.BestAsk)

	o, ok, err := f.eng.Order(link, sell.OrderID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, alice, o.Trader)
	assert.Equal(t, int64(10), o.Remaining)

	_, err = f.eng.SubmitMarketOrder(bob, link, 10, orderbook.Buy)
	require.NoError(t, err)

	_, ok, err = f.eng.Order(link, sell.OrderID)
	require.NoError(t, err)
	assert.False(t, ok, "filled orders leave the book")

	depth, err = f.eng.Depth(link)
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth.BestAsk)
	assert.Equal(t, int64(15), depth.LastPrice)

	_, _, err = f.eng.Order(dai, sell.OrderID)
	require.ErrorIs(t, err, ErrQuoteAsset)
}

func TestConcurrentSubmissions(t *testing.T) {
	f := newFixture(t)

	const traders = 8
	const rounds = 50
	addrs := make([]common.Address, traders)
	for i := range addrs {
		addrs[i] = common.BigToAddress(big.NewInt(int64(i + 1)))
		f.fund(t, addrs[i], link, 1_000)
		f.fund(t, addrs[i], uni, 1_000)
		f.fund(t, addrs[i], dai, 100_000)
	}

	var wg sync.WaitGroup
	for i, trader := range addrs {
		wg.Add(1)
		go func(i int, trader common.Address) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				sym := link
				if (i+r)%2 == 0 {
					sym = uni
				}
				side := orderbook.Buy
				if r%2 == i%2 {
					side = orderbook.Sell
				}
				price := int64(10 + (i+r)%5)
				var err error
				if r%3 == 0 {
					_, err = f.eng.SubmitMarketOrder(trader, sym, int64(1+r%4), side)
				} else {
					_, err = f.eng.SubmitLimitOrder(trader, sym, int64(1+r%7), price, side)
				}
				if err != nil {
					assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
				}
			}
		}(i, trader)
	}
	wg.Wait()

	f.conserved(t)

	// every resting order's escrow is exactly what the ledger holds for it
	held := make(map[common.Address]map[asset.Symbol]int64)
	for _, sym := range []asset.Symbol{link, uni} {
		for _, side := range []orderbook.Side{orderbook.Buy, orderbook.Sell} {
			orders, err := f.eng.RestingOrders(sym, side)
			require.NoError(t, err)
			for _, o := range orders {
				offered := sym
				if side == orderbook.Buy {
					offered = dai
				}
				if held[o.Trader] == nil {
					held[o.Trader] = make(map[asset.Symbol]int64)
				}
				held[o.Trader][offered] += o.Escrow
			}
		}
	}
	for _, trader := range addrs {
		for _, sym := range []asset.Symbol{link, uni, dai} {
			assert.Equal(t, held[trader][sym], f.ledger.Balance(trader, sym).Held, "%s %s", trader.Hex(), sym)
		}
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "filled", Filled.String())
	assert.Equal(t, "partially_discarded", PartiallyDiscarded.String())
	assert.True(t, PartiallyResting.Resting())
	assert.False(t, UnmatchedDiscarded.Resting())
	assert.Equal(t, "unknown", State(42).String())
}
