// Package model defines domain models for SPV payout verification.
package model

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Network identifies the Bitcoin network a checkpoint and its proofs belong to.
type Network string

var (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Regtest Network = "regtest"
)

// Checkpoint is an attested trust anchor for header-chain verification.
// Height 0 is a sentinel meaning "absent": the genesis block is never a
// checkpoint, so a zero-valued Checkpoint is unambiguous.
type Checkpoint struct {
	Height    uint32
	Hash      chainhash.Hash
	ChainWork *big.Int
	Timestamp uint32
	Bits      uint32
}

// IsZero reports whether c is the absent-checkpoint sentinel.
func (c Checkpoint) IsZero() bool {
	return c.Height == 0
}
