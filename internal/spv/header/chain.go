package header

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
)

// VerifyChain walks headers in order, checking that each links to the hash of
// its predecessor (the first to checkpointHash) and that each header's own
// hash satisfies its own bits field. It returns the hash and parsed form of
// the final header, whose merkle root and timestamp anchor the inclusion
// check.
//
// Difficulty-bits continuity across a retarget boundary is not validated:
// callers cap the chain length (one day of blocks) specifically to bound
// exposure to that simplification, and checkpoint placement cadence depends
// on it staying this way.
func VerifyChain(checkpointHash chainhash.Hash, headers [][]byte) (chainhash.Hash, BlockHeader, error) {
	if len(headers) == 0 {
		return chainhash.Hash{}, BlockHeader{}, fmt.Errorf("%w: empty header chain", model.ErrChainValidation)
	}

	prevHash := checkpointHash
	var last BlockHeader
	for i, raw := range headers {
		h, err := Parse(raw)
		if err != nil {
			return chainhash.Hash{}, BlockHeader{}, fmt.Errorf("header %d: %w", i, err)
		}
		if h.PrevBlock != prevHash {
			return chainhash.Hash{}, BlockHeader{}, fmt.Errorf(
				"%w: header %d links to %s, want %s", model.ErrChainValidation, i, h.PrevBlock, prevHash)
		}
		hash, err := Hash(raw)
		if err != nil {
			return chainhash.Hash{}, BlockHeader{}, fmt.Errorf("header %d: %w", i, err)
		}
		if !CheckProofOfWork(hash, h.Bits) {
			return chainhash.Hash{}, BlockHeader{}, fmt.Errorf(
				"%w: header %d hash %s misses target bits %08x", model.ErrChainValidation, i, hash, h.Bits)
		}
		prevHash = hash
		last = h
	}
	return prevHash, last, nil
}
