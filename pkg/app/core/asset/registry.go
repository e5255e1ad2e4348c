package asset

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MaxSymbolLen matches the bytes32 identifiers used by the custody contracts.
const MaxSymbolLen = 32

var (
	ErrDuplicateAsset = errors.New("asset already registered")
	ErrUnknownAsset   = errors.New("unknown asset")
	ErrInvalidSymbol  = errors.New("invalid asset symbol")
)

// Symbol is the short identifier of a registered asset (e.g. "LINK").
type Symbol string

// Valid reports whether s is 1 to MaxSymbolLen bytes of [A-Za-z0-9._-].
// Symbols appear in store keys and URL paths, so separators are not allowed.
func (s Symbol) Valid() bool {
	if s == "" || len(s) > MaxSymbolLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

// Asset is immutable once registered.
type Asset struct {
	Symbol  Symbol
	Custody common.Address // handle used by the external custody collaborator
	Index   int            // position in registration order
}

// Registry maps symbols to custody handles and remembers registration order.
// Assets are never removed.
type Registry struct {
	mu     sync.RWMutex
	assets map[Symbol]Asset
	order  []Symbol
}

func NewRegistry() *Registry {
	return &Registry{
		assets: make(map[Symbol]Asset),
	}
}

// Register appends a new asset to the registry
// Returns ErrDuplicateAsset if the symbol is already known
func (r *Registry) Register(symbol Symbol, custody common.Address) (Asset, error) {
	if !symbol.Valid() {
		return Asset{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assets[symbol]; exists {
		return Asset{}, fmt.Errorf("%w: %s", ErrDuplicateAsset, symbol)
	}

	a := Asset{Symbol: symbol, Custody: custody, Index: len(r.order)}
	r.assets[symbol] = a
	r.order = append(r.order, symbol)
	return a, nil
}

// Resolve returns the custody handle of a registered asset
func (r *Registry) Resolve(symbol Symbol) (common.Address, error) {
	a, err := r.Get(symbol)
	if err != nil {
		return common.Address{}, err
	}
	return a.Custody, nil
}

func (r *Registry) Get(symbol Symbol) (Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.assets[symbol]
	if !exists {
		return Asset{}, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	return a, nil
}

// At returns the i-th registered asset.
func (r *Registry) At(i int) (Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i < 0 || i >= len(r.order) {
		return Asset{}, fmt.Errorf("%w: index %d out of range [0,%d)", ErrUnknownAsset, i, len(r.order))
	}
	return r.assets[r.order[i]], nil
}

// List returns the symbols in registration order.
// The slice is a copy; calling List again restarts the enumeration.
func (r *Registry) List() []Symbol {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Symbol, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) Exists(symbol Symbol) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.assets[symbol]
	return exists
}
