package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/uhyunpark/spotdex/pkg/app/core/asset"
	"github.com/uhyunpark/spotdex/pkg/app/core/engine"
)

// TradeStore is an append-only history of executed trades, keyed per asset in
// execution order.
type TradeStore struct {
	db *pebble.DB
}

// OpenTradeStore opens a store under dir. An empty dir keeps everything in memory.
func OpenTradeStore(dir string) (*TradeStore, error) {
	opts := &pebble.Options{}
	if dir == "" {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open trade store: %w", err)
	}
	return &TradeStore{db: db}, nil
}

func (s *TradeStore) Close() error { return s.db.Close() }

// SaveTrades writes trades in one batch. History is not replayed on restart,
// so the batch is not synced.
func (s *TradeStore) SaveTrades(trades []engine.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	b := s.db.NewBatch()
	defer b.Close()

	for _, t := range trades {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal trade: %w", err)
		}
		if err := b.Set(tradeKey(t.Asset, t.Seq, t.ID.String()), data, nil); err != nil {
			return fmt.Errorf("failed to stage trade: %w", err)
		}
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("failed to save trades: %w", err)
	}
	return nil
}

// LoadRecentTrades returns up to limit trades of one asset, newest first.
func (s *TradeStore) LoadRecentTrades(a asset.Symbol, limit int) ([]engine.Trade, error) {
	if limit <= 0 {
		return nil, nil
	}
	prefix := tradePrefix(a)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var trades []engine.Trade
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var t engine.Trade
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trade %q: %w", iter.Key(), err)
		}
		trades = append(trades, t)
	}
	return trades, iter.Error()
}
