// Package domain contains the core domain types for the monitor context.
package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Watchlist is the set of addresses whose activity is inspected.
type Watchlist struct {
	set map[common.Address]struct{}
}

// NewWatchlist rejects malformed hex addresses.
func NewWatchlist(hexAddrs []string) (*Watchlist, error) {
	w := &Watchlist{set: make(map[common.Address]struct{}, len(hexAddrs))}
	for _, h := range hexAddrs {
		if !common.IsHexAddress(h) {
			return nil, fmt.Errorf("invalid watch address %q", h)
		}
		w.set[common.HexToAddress(h)] = struct{}{}
	}
	return w, nil
}

func (w *Watchlist) Contains(addr common.Address) bool {
	_, ok := w.set[addr]
	return ok
}

func (w *Watchlist) Len() int { return len(w.set) }

func (w *Watchlist) Addresses() []common.Address {
	out := make([]common.Address, 0, len(w.set))
	for a := range w.set {
		out = append(out, a)
	}
	return out
}
