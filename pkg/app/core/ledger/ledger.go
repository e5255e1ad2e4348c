package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotdex/pkg/app/core/asset"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientHeld    = errors.New("insufficient held balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// Balance is a trader's position in one asset.
// Available can be spent or held for new orders; Held backs resting orders.
type Balance struct {
	Available int64
	Held      int64
}

func (b Balance) Total() int64 { return b.Available + b.Held }

// Entry is one non-empty (trader, asset) balance.
type Entry struct {
	Trader common.Address
	Asset  asset.Symbol
	Balance
}

type key struct {
	trader common.Address
	asset  asset.Symbol
}

// Ledger holds per-trader, per-asset balances.
// Every mutation runs under one lock so postings touching several (trader, asset)
// pairs commit as a single step.
type Ledger struct {
	mu       sync.RWMutex
	balances map[key]Balance
}

func New() *Ledger {
	return &Ledger{
		balances: make(map[key]Balance),
	}
}

// Update runs fn against a staged view of the ledger. Postings become visible only if
// fn returns nil; on error nothing is applied.
func (l *Ledger) Update(fn func(tx *Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &Tx{l: l, staged: make(map[key]Balance)}
	if err := fn(tx); err != nil {
		return err
	}
	for k, b := range tx.staged {
		if b == (Balance{}) {
			delete(l.balances, k)
			continue
		}
		l.balances[k] = b
	}
	return nil
}

// Credit increases the available balance.
func (l *Ledger) Credit(trader common.Address, a asset.Symbol, amount int64) error {
	return l.Update(func(tx *Tx) error { return tx.Credit(trader, a, amount) })
}

// Debit decreases the available balance
// Returns ErrInsufficientBalance if available < amount
func (l *Ledger) Debit(trader common.Address, a asset.Symbol, amount int64) error {
	return l.Update(func(tx *Tx) error { return tx.Debit(trader, a, amount) })
}

// Hold moves amount from available to held.
func (l *Ledger) Hold(trader common.Address, a asset.Symbol, amount int64) error {
	return l.Update(func(tx *Tx) error { return tx.Hold(trader, a, amount) })
}

// Release moves amount from held back to available.
func (l *Ledger) Release(trader common.Address, a asset.Symbol, amount int64) error {
	return l.Update(func(tx *Tx) error { return tx.Release(trader, a, amount) })
}

// BalanceOf returns the available balance.
func (l *Ledger) BalanceOf(trader common.Address, a asset.Symbol) int64 {
	return l.Balance(trader, a).Available
}

func (l *Ledger) Balance(trader common.Address, a asset.Symbol) Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[key{trader, a}]
}

// Supply returns available plus held across all traders for one asset.
func (l *Ledger) Supply(a asset.Symbol) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total int64
	for k, b := range l.balances {
		if k.asset == a {
			total += b.Total()
		}
	}
	return total
}

// BalancesOf returns every non-empty balance of one trader keyed by asset.
func (l *Ledger) BalancesOf(trader common.Address) map[asset.Symbol]Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[asset.Symbol]Balance)
	for k, b := range l.balances {
		if k.trader == trader {
			out[k.asset] = b
		}
	}
	return out
}

// Entries returns all non-empty balances sorted by trader then asset.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	entries := make([]Entry, 0, len(l.balances))
	for k, b := range l.balances {
		entries = append(entries, Entry{Trader: k.trader, Asset: k.asset, Balance: b})
	}
	l.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if c := bytes.Compare(entries[i].Trader[:], entries[j].Trader[:]); c != 0 {
			return c < 0
		}
		return entries[i].Asset < entries[j].Asset
	})
	return entries
}

// Tx is a staged view handed to Update callbacks. It must not escape the callback.
type Tx struct {
	l      *Ledger
	staged map[key]Balance
}

func (tx *Tx) Balance(trader common.Address, a asset.Symbol) Balance {
	k := key{trader, a}
	if b, ok := tx.staged[k]; ok {
		return b
	}
	return tx.l.balances[k]
}

func (tx *Tx) Credit(trader common.Address, a asset.Symbol, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit %d", ErrInvalidAmount, amount)
	}
	b := tx.Balance(trader, a)
	if b.Total() > math.MaxInt64-amount {
		return fmt.Errorf("%w: %s %s", ErrBalanceOverflow, trader.Hex(), a)
	}
	b.Available += amount
	tx.set(trader, a, b)
	return nil
}

func (tx *Tx) Debit(trader common.Address, a asset.Symbol, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: debit %d", ErrInvalidAmount, amount)
	}
	b := tx.Balance(trader, a)
	if b.Available < amount {
		return fmt.Errorf("%w: %s has %d %s, need %d", ErrInsufficientBalance, trader.Hex(), b.Available, a, amount)
	}
	b.Available -= amount
	tx.set(trader, a, b)
	return nil
}

func (tx *Tx) Hold(trader common.Address, a asset.Symbol, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: hold %d", ErrInvalidAmount, amount)
	}
	b := tx.Balance(trader, a)
	if b.Available < amount {
		return fmt.Errorf("%w: %s has %d %s, need %d", ErrInsufficientBalance, trader.Hex(), b.Available, a, amount)
	}
	b.Available -= amount
	b.Held += amount
	tx.set(trader, a, b)
	return nil
}

func (tx *Tx) Release(trader common.Address, a asset.Symbol, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: release %d", ErrInvalidAmount, amount)
	}
	b := tx.Balance(trader, a)
	if b.Held < amount {
		return fmt.Errorf("%w: %s holds %d %s, release %d", ErrInsufficientHeld, trader.Hex(), b.Held, a, amount)
	}
	b.Held -= amount
	b.Available += amount
	tx.set(trader, a, b)
	return nil
}

// SpendHeld consumes held funds, e.g. a resting order's escrow paid out in a fill.
func (tx *Tx) SpendHeld(trader common.Address, a asset.Symbol, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: spend %d", ErrInvalidAmount, amount)
	}
	b := tx.Balance(trader, a)
	if b.Held < amount {
		return fmt.Errorf("%w: %s holds %d %s, spend %d", ErrInsufficientHeld, trader.Hex(), b.Held, a, amount)
	}
	b.Held -= amount
	tx.set(trader, a, b)
	return nil
}

func (tx *Tx) set(trader common.Address, a asset.Symbol, b Balance) {
	tx.staged[key{trader, a}] = b
}
