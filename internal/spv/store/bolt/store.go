// Package bolt persists the verifier's checkpoint, recipient and replay
// state in a bbolt database for the gateway deployment. The monotonic
// checkpoint rule and the append-only replay set are enforced inside single
// update transactions, so check-then-act sequences stay atomic.
package bolt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/store/memory"
	bbolt "go.etcd.io/bbolt"
)

var (
	bucketCheckpoints = []byte("checkpoints")
	bucketRecipients  = []byte("recipients")
	bucketPayouts     = []byte("payouts")
	bucketMeta        = []byte("meta")

	keyLatestHeight = []byte("latest_checkpoint_height")
)

// Store is a bbolt-backed implementation of the verifier's state interfaces.
type Store struct {
	db       *bbolt.DB
	attestor string
}

// Open opens (creating if needed) the database at path.
func Open(path, attestor string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketCheckpoints, bucketRecipients, bucketPayouts, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &Store{db: db, attestor: attestor}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Set records a checkpoint, enforcing attestor authorization and strict
// height monotonicity within one transaction.
func (s *Store) Set(_ context.Context, caller string, checkpoint model.Checkpoint) error {
	if caller != s.attestor {
		return fmt.Errorf("%w: caller is not the checkpoint attestor", model.ErrAuthorization)
	}
	if err := memory.ValidateCheckpoint(checkpoint); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		latest := readUint32(meta.Get(keyLatestHeight))
		if checkpoint.Height <= latest {
			return fmt.Errorf("%w: checkpoint height %d does not advance past %d",
				model.ErrChainValidation, checkpoint.Height, latest)
		}
		if err := tx.Bucket(bucketCheckpoints).Put(heightKey(checkpoint.Height), encodeCheckpoint(checkpoint)); err != nil {
			return err
		}
		return meta.Put(keyLatestHeight, uint32Bytes(checkpoint.Height))
	})
}

// Checkpoint returns the checkpoint at height, zero-valued if absent.
func (s *Store) Checkpoint(_ context.Context, height uint32) (model.Checkpoint, error) {
	var checkpoint model.Checkpoint
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketCheckpoints).Get(heightKey(height))
		if raw == nil {
			return nil
		}
		var err error
		checkpoint, err = decodeCheckpoint(height, raw)
		return err
	})
	return checkpoint, err
}

// Latest returns the most recently attested checkpoint.
func (s *Store) Latest(ctx context.Context) (model.Checkpoint, error) {
	height, err := s.LatestHeight(ctx)
	if err != nil {
		return model.Checkpoint{}, err
	}
	if height == 0 {
		return model.Checkpoint{}, fmt.Errorf("%w: no checkpoint attested yet", model.ErrNotFound)
	}
	return s.Checkpoint(ctx, height)
}

// LatestHeight returns the height of the most recent checkpoint, zero if none.
func (s *Store) LatestHeight(_ context.Context) (uint32, error) {
	var height uint32
	err := s.db.View(func(tx *bbolt.Tx) error {
		height = readUint32(tx.Bucket(bucketMeta).Get(keyLatestHeight))
		return nil
	})
	return height, err
}

// MarkProcessed inserts a payout key, failing with model.ErrReplay if present.
func (s *Store) MarkProcessed(_ context.Context, key model.PayoutKey) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPayouts)
		if bucket.Get(key[:]) != nil {
			return fmt.Errorf("%w: payout already consumed", model.ErrReplay)
		}
		return bucket.Put(key[:], []byte{1})
	})
}

// IsProcessed reports whether a payout key has been consumed.
func (s *Store) IsProcessed(_ context.Context, key model.PayoutKey) (bool, error) {
	var processed bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		processed = tx.Bucket(bucketPayouts).Get(key[:]) != nil
		return nil
	})
	return processed, err
}

// Register binds a recipient identity to its expected pubkey hash.
func (s *Store) Register(_ context.Context, caller, identity string, expectedHash [20]byte) error {
	if caller != s.attestor {
		return fmt.Errorf("%w: caller is not the recipient registrar", model.ErrAuthorization)
	}
	if identity == "" {
		return fmt.Errorf("%w: empty recipient identity", model.ErrRecipient)
	}
	if expectedHash == ([20]byte{}) {
		return fmt.Errorf("%w: zero pubkey hash for %q", model.ErrRecipient, identity)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecipients).Put([]byte(identity), expectedHash[:])
	})
}

// ExpectedHash returns the hash registered for identity, zero if absent.
func (s *Store) ExpectedHash(_ context.Context, identity string) ([20]byte, error) {
	var hash [20]byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketRecipients).Get([]byte(identity))
		if raw == nil {
			return nil
		}
		if len(raw) != len(hash) {
			return fmt.Errorf("recipient %q: stored hash has length %d", identity, len(raw))
		}
		copy(hash[:], raw)
		return nil
	})
	return hash, err
}

// Checkpoint values are hash (32) || timestamp (4) || bits (4) || chain work
// (big-endian, variable length). Height lives in the key.
func encodeCheckpoint(checkpoint model.Checkpoint) []byte {
	work := checkpoint.ChainWork.Bytes()
	out := make([]byte, 0, chainhash.HashSize+8+len(work))
	out = append(out, checkpoint.Hash[:]...)
	out = binary.BigEndian.AppendUint32(out, checkpoint.Timestamp)
	out = binary.BigEndian.AppendUint32(out, checkpoint.Bits)
	out = append(out, work...)
	return out
}

func decodeCheckpoint(height uint32, raw []byte) (model.Checkpoint, error) {
	if len(raw) < chainhash.HashSize+8 {
		return model.Checkpoint{}, errors.New("checkpoint record too short")
	}
	var checkpoint model.Checkpoint
	checkpoint.Height = height
	copy(checkpoint.Hash[:], raw[:chainhash.HashSize])
	checkpoint.Timestamp = binary.BigEndian.Uint32(raw[chainhash.HashSize:])
	checkpoint.Bits = binary.BigEndian.Uint32(raw[chainhash.HashSize+4:])
	checkpoint.ChainWork = new(big.Int).SetBytes(raw[chainhash.HashSize+8:])
	return checkpoint, nil
}

func heightKey(height uint32) []byte {
	return uint32Bytes(height)
}

func uint32Bytes(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func readUint32(raw []byte) uint32 {
	if len(raw) != 4 {
		return 0
	}
	return binary.BigEndian.Uint32(raw)
}
