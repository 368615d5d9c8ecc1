package model

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// SpvProof is the verification input submitted by the credit engine: a header
// chain anchored at a checkpoint, the raw transaction, its Merkle inclusion
// path and the claimed output.
type SpvProof struct {
	CheckpointHeight uint32
	// Headers spans checkpoint+1 .. target block inclusive, 80 bytes each.
	Headers [][]byte
	RawTx   []byte
	// Siblings is the Merkle path from the transaction to the target block's
	// root, leaf level first.
	Siblings []chainhash.Hash
	TxIndex  uint32
	// OutputIndex selects the claimed output within the transaction.
	OutputIndex uint32
	// Recipient is the credit engine's identifier for the payee. Its encoding
	// is the credit engine's concern, not a Bitcoin-format field.
	Recipient string
}
