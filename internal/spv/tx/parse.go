// Package tx parses raw Bitcoin transactions just far enough to extract a
// single output. Inputs are skipped, witness data is never read, and every
// length field is checked against the buffer so a lying or truncated
// transaction fails instead of reading out of bounds.
package tx

import (
	"fmt"

	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/codec"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
)

const (
	segwitMarker = 0x00
	segwitFlag   = 0x01

	prevOutSize  = 32 + 4
	sequenceSize = 4
	valueSize    = 8
)

// Output is the extracted value and locking script of one transaction output.
type Output struct {
	// Value is satoshi-denominated.
	Value        uint64
	ScriptPubKey []byte
}

// ParseOutput walks rawTx and returns the output at outputIndex. Segwit and
// legacy serializations are handled identically for output purposes; the
// witness section lives after the outputs and is never visited.
func ParseOutput(rawTx []byte, outputIndex uint32) (Output, error) {
	offset := 4 // version
	if len(rawTx) < offset {
		return Output{}, fmt.Errorf("%w: transaction shorter than version field", model.ErrFormat)
	}

	if len(rawTx) >= offset+2 && rawTx[offset] == segwitMarker && rawTx[offset+1] == segwitFlag {
		offset += 2
	}

	inputCount, offset, err := codec.VarInt(rawTx, offset)
	if err != nil {
		return Output{}, fmt.Errorf("input count: %w", err)
	}
	for i := uint64(0); i < inputCount; i++ {
		offset += prevOutSize
		scriptLen, next, err := codec.VarInt(rawTx, offset)
		if err != nil {
			return Output{}, fmt.Errorf("input %d script length: %w", i, err)
		}
		offset = next
		if _, err := codec.Bytes(rawTx, offset, int(scriptLen)); err != nil {
			return Output{}, fmt.Errorf("input %d script: %w", i, err)
		}
		offset += int(scriptLen) + sequenceSize
	}

	outputCount, offset, err := codec.VarInt(rawTx, offset)
	if err != nil {
		return Output{}, fmt.Errorf("output count: %w", err)
	}
	if uint64(outputIndex) >= outputCount {
		return Output{}, fmt.Errorf("%w: output index %d out of range, transaction has %d outputs",
			model.ErrFormat, outputIndex, outputCount)
	}

	for i := uint64(0); ; i++ {
		value, err := codec.Uint64LE(rawTx, offset)
		if err != nil {
			return Output{}, fmt.Errorf("output %d value: %w", i, err)
		}
		offset += valueSize
		scriptLen, next, err := codec.VarInt(rawTx, offset)
		if err != nil {
			return Output{}, fmt.Errorf("output %d script length: %w", i, err)
		}
		offset = next
		script, err := codec.Bytes(rawTx, offset, int(scriptLen))
		if err != nil {
			return Output{}, fmt.Errorf("output %d script: %w", i, err)
		}
		offset += int(scriptLen)

		if i == uint64(outputIndex) {
			return Output{
				Value:        value,
				ScriptPubKey: append([]byte(nil), script...),
			}, nil
		}
	}
}
