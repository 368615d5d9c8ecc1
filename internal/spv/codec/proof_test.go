package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
	"github.com/stretchr/testify/require"
)

func sampleProof() model.SpvProof {
	header := bytes.Repeat([]byte{0xab}, 80)
	var sibling chainhash.Hash
	sibling[0] = 0x11

	return model.SpvProof{
		CheckpointHeight: 840_000,
		Headers:          [][]byte{append([]byte(nil), header...)},
		RawTx:            []byte{0x02, 0x00, 0x00, 0x00, 0x01},
		Siblings:         []chainhash.Hash{sibling},
		TxIndex:          3,
		OutputIndex:      1,
		Recipient:        "0x52908400098527886e0f7030069857d2e4169ee7",
	}
}

func TestProofRoundTrip(t *testing.T) {
	t.Parallel()

	proof := sampleProof()
	encoded, err := EncodeProof(proof)
	require.NoError(t, err)

	decoded, err := DecodeProof(encoded)
	require.NoError(t, err)
	require.Equal(t, proof, decoded)
}

func TestEncodeProof_badHeaderLength(t *testing.T) {
	t.Parallel()

	proof := sampleProof()
	proof.Headers = append(proof.Headers, []byte{0x01, 0x02})

	_, err := EncodeProof(proof)
	require.ErrorIs(t, err, model.ErrFormat)
}

func TestDecodeProof_malformed(t *testing.T) {
	t.Parallel()

	valid, err := EncodeProof(sampleProof())
	require.NoError(t, err)

	tests := []struct {
		name string
		buf  []byte
	}{
		{
			name: "empty",
			buf:  nil,
		},
		{
			name: "truncated header list",
			buf:  valid[:40],
		},
		{
			name: "truncated tail",
			buf:  valid[:len(valid)-3],
		},
		{
			name: "trailing bytes",
			buf:  append(append([]byte(nil), valid...), 0x00),
		},
		{
			name: "header count overstates buffer",
			buf:  []byte{0x00, 0x00, 0x00, 0x00, 0xfd, 0xff, 0xff},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeProof(tt.buf)
			if !errors.Is(err, model.ErrFormat) {
				t.Errorf("DecodeProof() error = %v, want model.ErrFormat", err)
			}
		})
	}
}

// Rejection must be stable: decoding the same malformed input twice yields the
// same error category.
func TestDecodeProof_rejectionIdempotent(t *testing.T) {
	t.Parallel()

	buf := []byte{0x00, 0x00, 0x00, 0x00, 0xfd}
	_, first := DecodeProof(buf)
	_, second := DecodeProof(buf)
	require.ErrorIs(t, first, model.ErrFormat)
	require.Equal(t, first.Error(), second.Error())
}
