package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
)

// PayoutLedger is the append-only replay-protection set. A double-counted
// payout is double-counted revenue, so the check-then-insert runs under one
// lock; there is no lock-free variant.
type PayoutLedger struct {
	mu        sync.RWMutex
	processed map[model.PayoutKey]struct{}
}

// NewPayoutLedger builds an empty ledger.
func NewPayoutLedger() *PayoutLedger {
	return &PayoutLedger{processed: make(map[model.PayoutKey]struct{})}
}

// MarkProcessed inserts key, failing with model.ErrReplay if already present.
func (l *PayoutLedger) MarkProcessed(_ context.Context, key model.PayoutKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.processed[key]; ok {
		return fmt.Errorf("%w: payout already consumed", model.ErrReplay)
	}
	l.processed[key] = struct{}{}
	return nil
}

// IsProcessed reports whether key has been consumed.
func (l *PayoutLedger) IsProcessed(_ context.Context, key model.PayoutKey) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.processed[key]
	return ok, nil
}
