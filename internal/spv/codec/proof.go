package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
)

// The proof wire format, in order: checkpoint height (uint32 LE), header
// count (varint) followed by 80-byte headers, raw transaction (varint length
// prefix), sibling count (varint) followed by 32-byte hashes, transaction
// index (uint32 LE), output index (uint32 LE), recipient identity (varint
// length prefix, opaque bytes). Multi-byte integers are little-endian to
// match Bitcoin's own serialization.

const headerSize = 80

// EncodeProof serializes a proof into the wire format.
func EncodeProof(proof model.SpvProof) ([]byte, error) {
	size := 4 + varIntSize(uint64(len(proof.Headers))) + len(proof.Headers)*headerSize +
		varIntSize(uint64(len(proof.RawTx))) + len(proof.RawTx) +
		varIntSize(uint64(len(proof.Siblings))) + len(proof.Siblings)*chainhash.HashSize +
		4 + 4 +
		varIntSize(uint64(len(proof.Recipient))) + len(proof.Recipient)

	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, proof.CheckpointHeight)
	out = appendVarInt(out, uint64(len(proof.Headers)))
	for i, h := range proof.Headers {
		if len(h) != headerSize {
			return nil, fmt.Errorf("%w: header %d has length %d, want %d",
				model.ErrFormat, i, len(h), headerSize)
		}
		out = append(out, h...)
	}
	out = appendVarInt(out, uint64(len(proof.RawTx)))
	out = append(out, proof.RawTx...)
	out = appendVarInt(out, uint64(len(proof.Siblings)))
	for _, s := range proof.Siblings {
		out = append(out, s[:]...)
	}
	out = binary.LittleEndian.AppendUint32(out, proof.TxIndex)
	out = binary.LittleEndian.AppendUint32(out, proof.OutputIndex)
	out = appendVarInt(out, uint64(len(proof.Recipient)))
	out = append(out, proof.Recipient...)
	return out, nil
}

// DecodeProof parses the wire format produced by EncodeProof. Trailing bytes
// are rejected.
func DecodeProof(buf []byte) (model.SpvProof, error) {
	var proof model.SpvProof

	height, err := Uint32LE(buf, 0)
	if err != nil {
		return model.SpvProof{}, fmt.Errorf("checkpoint height: %w", err)
	}
	proof.CheckpointHeight = height
	offset := 4

	headerCount, offset, err := VarInt(buf, offset)
	if err != nil {
		return model.SpvProof{}, fmt.Errorf("header count: %w", err)
	}
	if headerCount > uint64(len(buf))/headerSize {
		return model.SpvProof{}, fmt.Errorf("%w: header count %d exceeds buffer", model.ErrFormat, headerCount)
	}
	proof.Headers = make([][]byte, 0, headerCount)
	for i := uint64(0); i < headerCount; i++ {
		h, err := Bytes(buf, offset, headerSize)
		if err != nil {
			return model.SpvProof{}, fmt.Errorf("header %d: %w", i, err)
		}
		proof.Headers = append(proof.Headers, append([]byte(nil), h...))
		offset += headerSize
	}

	txLen, offset, err := VarInt(buf, offset)
	if err != nil {
		return model.SpvProof{}, fmt.Errorf("raw tx length: %w", err)
	}
	rawTx, err := Bytes(buf, offset, int(txLen))
	if err != nil || txLen > uint64(len(buf)) {
		return model.SpvProof{}, fmt.Errorf("raw tx: %w", model.ErrFormat)
	}
	proof.RawTx = append([]byte(nil), rawTx...)
	offset += int(txLen)

	siblingCount, offset, err := VarInt(buf, offset)
	if err != nil {
		return model.SpvProof{}, fmt.Errorf("sibling count: %w", err)
	}
	if siblingCount > uint64(len(buf))/chainhash.HashSize {
		return model.SpvProof{}, fmt.Errorf("%w: sibling count %d exceeds buffer", model.ErrFormat, siblingCount)
	}
	proof.Siblings = make([]chainhash.Hash, 0, siblingCount)
	for i := uint64(0); i < siblingCount; i++ {
		s, err := Bytes(buf, offset, chainhash.HashSize)
		if err != nil {
			return model.SpvProof{}, fmt.Errorf("sibling %d: %w", i, err)
		}
		var h chainhash.Hash
		copy(h[:], s)
		proof.Siblings = append(proof.Siblings, h)
		offset += chainhash.HashSize
	}

	if proof.TxIndex, err = Uint32LE(buf, offset); err != nil {
		return model.SpvProof{}, fmt.Errorf("tx index: %w", err)
	}
	offset += 4
	if proof.OutputIndex, err = Uint32LE(buf, offset); err != nil {
		return model.SpvProof{}, fmt.Errorf("output index: %w", err)
	}
	offset += 4

	recipientLen, offset, err := VarInt(buf, offset)
	if err != nil {
		return model.SpvProof{}, fmt.Errorf("recipient length: %w", err)
	}
	recipient, err := Bytes(buf, offset, int(recipientLen))
	if err != nil || recipientLen > uint64(len(buf)) {
		return model.SpvProof{}, fmt.Errorf("recipient: %w", model.ErrFormat)
	}
	proof.Recipient = string(recipient)
	offset += int(recipientLen)

	if offset != len(buf) {
		return model.SpvProof{}, fmt.Errorf("%w: %d trailing bytes", model.ErrFormat, len(buf)-offset)
	}
	return proof, nil
}

func appendVarInt(out []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(out, byte(n))
	case n <= 0xffff:
		out = append(out, 0xfd)
		return binary.LittleEndian.AppendUint16(out, uint16(n))
	case n <= 0xffffffff:
		out = append(out, 0xfe)
		return binary.LittleEndian.AppendUint32(out, uint32(n))
	default:
		out = append(out, 0xff)
		return binary.LittleEndian.AppendUint64(out, n)
	}
}

func varIntSize(n uint64) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}
