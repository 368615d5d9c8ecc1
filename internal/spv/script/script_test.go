package script

import (
	"testing"

	"github.com/btcsuite/btcd/txscript"
)

func hash20(seed byte) []byte {
	h := make([]byte, HashSize)
	for i := range h {
		h[i] = seed
	}
	return h
}

func TestExtractPubkeyHash(t *testing.T) {
	t.Parallel()

	p2wpkh := append([]byte{txscript.OP_0, txscript.OP_DATA_20}, hash20(0x11)...)
	p2pkh := append([]byte{txscript.OP_DUP, txscript.OP_HASH160, txscript.OP_DATA_20}, hash20(0x22)...)
	p2pkh = append(p2pkh, txscript.OP_EQUALVERIFY, txscript.OP_CHECKSIG)

	tests := []struct {
		name     string
		script   []byte
		wantHash byte
		wantType Type
	}{
		{
			name:     "p2wpkh",
			script:   p2wpkh,
			wantHash: 0x11,
			wantType: TypeWitnessKeyHash,
		},
		{
			name:     "p2pkh",
			script:   p2pkh,
			wantHash: 0x22,
			wantType: TypeKeyHash,
		},
		{
			name: "p2wsh length rejected",
			script: append([]byte{txscript.OP_0, txscript.OP_DATA_32},
				make([]byte, 32)...),
			wantType: TypeUnsupported,
		},
		{
			name: "p2sh markers rejected",
			script: append(append([]byte{txscript.OP_HASH160, txscript.OP_DATA_20},
				hash20(0x33)...), txscript.OP_EQUAL),
			wantType: TypeUnsupported,
		},
		{
			name: "witness v1 program rejected",
			script: append([]byte{txscript.OP_1, txscript.OP_DATA_20},
				hash20(0x44)...),
			wantType: TypeUnsupported,
		},
		{
			name: "p2pkh with wrong terminator",
			script: append(append([]byte{txscript.OP_DUP, txscript.OP_HASH160, txscript.OP_DATA_20},
				hash20(0x55)...), txscript.OP_EQUALVERIFY, txscript.OP_NOP),
			wantType: TypeUnsupported,
		},
		{
			name:     "empty script",
			script:   nil,
			wantType: TypeUnsupported,
		},
		{
			name:     "truncated p2wpkh",
			script:   p2wpkh[:21],
			wantType: TypeUnsupported,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, typ := ExtractPubkeyHash(tt.script)
			if typ != tt.wantType {
				t.Errorf("ExtractPubkeyHash() type = %v, want %v", typ, tt.wantType)
			}
			if tt.wantType == TypeUnsupported {
				if hash != [HashSize]byte{} {
					t.Errorf("ExtractPubkeyHash() hash = %x, want zero on unsupported", hash)
				}
				return
			}
			for _, b := range hash {
				if b != tt.wantHash {
					t.Errorf("ExtractPubkeyHash() hash = %x, want all %x", hash, tt.wantHash)
					break
				}
			}
		})
	}
}
