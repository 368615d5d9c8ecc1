// Package memory provides in-memory implementations of the verifier's
// checkpoint, recipient and replay-protection state, guarded by mutexes so
// check-then-act sequences are atomic under concurrent callers.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
)

// CheckpointStore holds owner-attested trust anchors. Heights strictly
// increase; no write removes or rewinds a checkpoint.
type CheckpointStore struct {
	attestor string

	mu     sync.RWMutex
	byHgt  map[uint32]model.Checkpoint
	latest uint32
}

// NewCheckpointStore builds a store whose writes are restricted to the given
// attestor credential.
func NewCheckpointStore(attestor string) *CheckpointStore {
	return &CheckpointStore{
		attestor: attestor,
		byHgt:    make(map[uint32]model.Checkpoint),
	}
}

// Set records a checkpoint and advances "latest". The caller credential must
// match the configured attestor and height must exceed the current latest.
func (s *CheckpointStore) Set(_ context.Context, caller string, checkpoint model.Checkpoint) error {
	if caller != s.attestor {
		return fmt.Errorf("%w: caller is not the checkpoint attestor", model.ErrAuthorization)
	}
	if err := ValidateCheckpoint(checkpoint); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if checkpoint.Height <= s.latest {
		return fmt.Errorf("%w: checkpoint height %d does not advance past %d",
			model.ErrChainValidation, checkpoint.Height, s.latest)
	}
	s.byHgt[checkpoint.Height] = checkpoint
	s.latest = checkpoint.Height
	return nil
}

// Checkpoint returns the checkpoint at height, zero-valued if absent.
func (s *CheckpointStore) Checkpoint(_ context.Context, height uint32) (model.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byHgt[height], nil
}

// Latest returns the most recently attested checkpoint, or model.ErrNotFound
// if none was ever set.
func (s *CheckpointStore) Latest(_ context.Context) (model.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == 0 {
		return model.Checkpoint{}, fmt.Errorf("%w: no checkpoint attested yet", model.ErrNotFound)
	}
	return s.byHgt[s.latest], nil
}

// LatestHeight returns the height of the most recent checkpoint, zero if none.
func (s *CheckpointStore) LatestHeight(_ context.Context) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, nil
}

// ValidateCheckpoint rejects records with sentinel fields that would make the
// anchor ambiguous.
func ValidateCheckpoint(checkpoint model.Checkpoint) error {
	if checkpoint.Height == 0 {
		return fmt.Errorf("%w: height 0 is the absent-checkpoint sentinel", model.ErrChainValidation)
	}
	if checkpoint.Hash == (chainhash.Hash{}) {
		return fmt.Errorf("%w: checkpoint hash must be non-zero", model.ErrChainValidation)
	}
	if checkpoint.Timestamp == 0 {
		return fmt.Errorf("%w: checkpoint timestamp must be non-zero", model.ErrChainValidation)
	}
	if checkpoint.Bits == 0 {
		return fmt.Errorf("%w: checkpoint bits must be non-zero", model.ErrChainValidation)
	}
	// Zero work is legal (an attestor may anchor without a work claim);
	// nil would break the persistent encoding and negative work is
	// meaningless.
	if checkpoint.ChainWork == nil || checkpoint.ChainWork.Sign() < 0 {
		return fmt.Errorf("%w: checkpoint chain work must be non-negative", model.ErrChainValidation)
	}
	return nil
}
