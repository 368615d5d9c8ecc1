package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
)

// RecipientRegistry maps credit-engine identities to expected pubkey hashes.
type RecipientRegistry struct {
	attestor string

	mu         sync.RWMutex
	recipients map[string][20]byte
}

// NewRecipientRegistry builds a registry whose writes are restricted to the
// given attestor credential.
func NewRecipientRegistry(attestor string) *RecipientRegistry {
	return &RecipientRegistry{
		attestor:   attestor,
		recipients: make(map[string][20]byte),
	}
}

// Register binds identity to the pubkey hash its payouts must pay. A zero
// hash is rejected because it doubles as the "not registered" sentinel.
func (r *RecipientRegistry) Register(_ context.Context, caller, identity string, expectedHash [20]byte) error {
	if caller != r.attestor {
		return fmt.Errorf("%w: caller is not the recipient registrar", model.ErrAuthorization)
	}
	if identity == "" {
		return fmt.Errorf("%w: empty recipient identity", model.ErrRecipient)
	}
	if expectedHash == ([20]byte{}) {
		return fmt.Errorf("%w: zero pubkey hash for %q", model.ErrRecipient, identity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.recipients[identity] = expectedHash
	return nil
}

// ExpectedHash returns the hash registered for identity, zero if absent.
func (r *RecipientRegistry) ExpectedHash(_ context.Context, identity string) ([20]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recipients[identity], nil
}
