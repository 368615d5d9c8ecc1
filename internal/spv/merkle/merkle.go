// Package merkle verifies Bitcoin Merkle inclusion proofs.
package merkle

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Verify recomputes the path from txid to the root using the ordered sibling
// list. At each level the lowest index bit decides whether the running hash is
// the left or right child; internal nodes are double-SHA256 of the
// concatenated pair. An empty sibling list is the single-transaction case:
// the txid must equal the root directly.
//
// Odd leaf counts need no special handling because the proof already carries
// the correct sibling (Bitcoin duplicates the last node) at each level.
func Verify(txid, root chainhash.Hash, siblings []chainhash.Hash, index uint32) bool {
	current := txid
	var pair [2 * chainhash.HashSize]byte
	for _, sibling := range siblings {
		if index&1 == 0 {
			copy(pair[:chainhash.HashSize], current[:])
			copy(pair[chainhash.HashSize:], sibling[:])
		} else {
			copy(pair[:chainhash.HashSize], sibling[:])
			copy(pair[chainhash.HashSize:], current[:])
		}
		current = chainhash.DoubleHashH(pair[:])
		index >>= 1
	}
	return current == root
}
