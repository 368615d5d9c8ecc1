// Package codec implements bounds-checked little-endian readers for
// Bitcoin-serialized structures. Every read fails with model.ErrFormat when it
// would run past the buffer; nothing is silently zero-filled.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
)

// Uint32LE reads a little-endian uint32 at offset.
func Uint32LE(buf []byte, offset int) (uint32, error) {
	if err := checkRange(buf, offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[offset:]), nil
}

// Uint64LE reads a little-endian uint64 at offset.
func Uint64LE(buf []byte, offset int) (uint64, error) {
	if err := checkRange(buf, offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[offset:]), nil
}

// Bytes returns the n bytes at offset. The slice aliases buf; callers that
// retain it must copy.
func Bytes(buf []byte, offset, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", model.ErrFormat, n)
	}
	if err := checkRange(buf, offset, n); err != nil {
		return nil, err
	}
	return buf[offset : offset+n], nil
}

// VarInt decodes a Bitcoin variable-length integer at offset and returns the
// value together with the offset of the byte following it.
func VarInt(buf []byte, offset int) (uint64, int, error) {
	if err := checkRange(buf, offset, 1); err != nil {
		return 0, 0, err
	}
	tag := buf[offset]
	switch {
	case tag < 0xfd:
		return uint64(tag), offset + 1, nil
	case tag == 0xfd:
		if err := checkRange(buf, offset+1, 2); err != nil {
			return 0, 0, err
		}
		return uint64(binary.LittleEndian.Uint16(buf[offset+1:])), offset + 3, nil
	case tag == 0xfe:
		if err := checkRange(buf, offset+1, 4); err != nil {
			return 0, 0, err
		}
		return uint64(binary.LittleEndian.Uint32(buf[offset+1:])), offset + 5, nil
	default: // 0xff
		if err := checkRange(buf, offset+1, 8); err != nil {
			return 0, 0, err
		}
		return binary.LittleEndian.Uint64(buf[offset+1:]), offset + 9, nil
	}
}

func checkRange(buf []byte, offset, n int) error {
	if offset < 0 {
		return fmt.Errorf("%w: negative offset %d", model.ErrFormat, offset)
	}
	if offset+n > len(buf) || offset+n < offset {
		return fmt.Errorf("%w: read of %d bytes at offset %d exceeds buffer length %d",
			model.ErrFormat, n, offset, len(buf))
	}
	return nil
}
