package model

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// PayoutEvidence is the validated record produced by a successful
// verification. The credit engine treats it as untrusted-but-verified input.
type PayoutEvidence struct {
	Network     Network
	Recipient   string
	TxID        chainhash.Hash
	OutputIndex uint32
	// Amount is satoshi-denominated.
	Amount      uint64
	BlockHeight uint32
	BlockTime   uint32
	VerifiedAt  time.Time
}

// PayoutKey is the replay-protection key for a (txid, vout) pair.
type PayoutKey chainhash.Hash

// Recipient maps a credit-engine identity to the pubkey hash its payouts
// must pay to. A zero ExpectedHash means "not registered".
type Recipient struct {
	Identity     string
	ExpectedHash [20]byte
}
