package storage

import (
	"fmt"

	"github.com/uhyunpark/spotdex/pkg/app/core/asset"
)

// Key schema:
//
//	trade:<len>:<asset>:<seq>:<id> → Trade (JSON)
//
// len is the symbol length in two digits, so one symbol's prefix never covers
// another symbol that merely starts with it. seq is zero-padded to 20 digits so
// keys sort in execution order.
const prefixTrade = "trade:"

func tradeKey(a asset.Symbol, seq uint64, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", tradePrefix(a), seq, id))
}

func tradePrefix(a asset.Symbol) []byte {
	return []byte(fmt.Sprintf("%s%02d:%s:", prefixTrade, len(a), a))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
