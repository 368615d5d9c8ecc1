// Package header implements Bitcoin block header parsing and header-chain
// verification anchored at a trusted checkpoint.
package header

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/codec"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
)

// Size is the serialized length of a Bitcoin block header.
const Size = 80

// BlockHeader is the six-field Bitcoin block header.
type BlockHeader struct {
	Version    uint32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// Parse decodes an 80-byte serialized header. Any other length is a format
// error.
func Parse(buf []byte) (BlockHeader, error) {
	if len(buf) != Size {
		return BlockHeader{}, fmt.Errorf("%w: header length %d, want %d", model.ErrFormat, len(buf), Size)
	}

	var h BlockHeader
	var err error
	if h.Version, err = codec.Uint32LE(buf, 0); err != nil {
		return BlockHeader{}, err
	}
	copy(h.PrevBlock[:], buf[4:36])
	copy(h.MerkleRoot[:], buf[36:68])
	if h.Timestamp, err = codec.Uint32LE(buf, 68); err != nil {
		return BlockHeader{}, err
	}
	if h.Bits, err = codec.Uint32LE(buf, 72); err != nil {
		return BlockHeader{}, err
	}
	if h.Nonce, err = codec.Uint32LE(buf, 76); err != nil {
		return BlockHeader{}, err
	}
	return h, nil
}

// Serialize encodes h back into its 80-byte form. Parse followed by Serialize
// reproduces the input bytes exactly.
func (h BlockHeader) Serialize() []byte {
	out := make([]byte, 0, Size)
	out = binary.LittleEndian.AppendUint32(out, h.Version)
	out = append(out, h.PrevBlock[:]...)
	out = append(out, h.MerkleRoot[:]...)
	out = binary.LittleEndian.AppendUint32(out, h.Timestamp)
	out = binary.LittleEndian.AppendUint32(out, h.Bits)
	out = binary.LittleEndian.AppendUint32(out, h.Nonce)
	return out
}

// Hash computes the double-SHA256 identity of the header.
func (h BlockHeader) Hash() chainhash.Hash {
	return chainhash.DoubleHashH(h.Serialize())
}

// Hash computes the double-SHA256 identity of an 80-byte serialized header.
func Hash(buf []byte) (chainhash.Hash, error) {
	if len(buf) != Size {
		return chainhash.Hash{}, fmt.Errorf("%w: header length %d, want %d", model.ErrFormat, len(buf), Size)
	}
	return chainhash.DoubleHashH(buf), nil
}
