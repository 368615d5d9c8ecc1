// Package script recognizes the two payout script shapes the verifier
// accepts and extracts the embedded pubkey hash.
package script

import "github.com/btcsuite/btcd/txscript"

// Type classifies an output script. Anything but the two keyhash shapes is
// unsupported and must be treated as a hard rejection upstream, never a soft
// default.
type Type string

const (
	TypeWitnessKeyHash Type = "witness_v0_keyhash"
	TypeKeyHash        Type = "pubkeyhash"
	TypeUnsupported    Type = "unsupported"
)

// HashSize is the length of a hashed public key.
const HashSize = 20

const (
	p2wpkhLen = 2 + HashSize
	p2pkhLen  = 5 + HashSize
)

// ExtractPubkeyHash matches scriptPubKey against the canonical P2WPKH
// (OP_0 OP_DATA_20 <hash>) and P2PKH (OP_DUP OP_HASH160 OP_DATA_20 <hash>
// OP_EQUALVERIFY OP_CHECKSIG) templates by exact length and marker bytes.
func ExtractPubkeyHash(scriptPubKey []byte) ([HashSize]byte, Type) {
	var hash [HashSize]byte

	switch len(scriptPubKey) {
	case p2wpkhLen:
		if scriptPubKey[0] == txscript.OP_0 && scriptPubKey[1] == txscript.OP_DATA_20 {
			copy(hash[:], scriptPubKey[2:])
			return hash, TypeWitnessKeyHash
		}
	case p2pkhLen:
		if scriptPubKey[0] == txscript.OP_DUP &&
			scriptPubKey[1] == txscript.OP_HASH160 &&
			scriptPubKey[2] == txscript.OP_DATA_20 &&
			scriptPubKey[23] == txscript.OP_EQUALVERIFY &&
			scriptPubKey[24] == txscript.OP_CHECKSIG {
			copy(hash[:], scriptPubKey[3:23])
			return hash, TypeKeyHash
		}
	}
	return [HashSize]byte{}, TypeUnsupported
}
