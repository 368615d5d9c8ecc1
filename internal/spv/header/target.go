package header

import (
	"math/big"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// maxTarget is the easiest legal Bitcoin difficulty (compact 0x1d00ffff),
// 0xffff << 208. Decoded targets are clamped to it to bound their magnitude.
var maxTarget = new(big.Int).Lsh(big.NewInt(0xffff), 208)

// BitsToTarget expands the compact difficulty encoding into a 256-bit target.
// The top byte is a base-256 exponent, the low 23 bits the mantissa; the
// mantissa sign bit is ignored since a negative target is meaningless here.
func BitsToTarget(bits uint32) *big.Int {
	exponent := uint(bits >> 24)
	mantissa := int64(bits & 0x007fffff)

	target := big.NewInt(mantissa)
	if exponent <= 3 {
		target.Rsh(target, 8*(3-exponent))
	} else {
		target.Lsh(target, 8*(exponent-3))
	}
	if target.Cmp(maxTarget) > 0 {
		target.Set(maxTarget)
	}
	return target
}

// CheckProofOfWork reports whether hash satisfies the compact target in bits.
// Block hashes are stored in Bitcoin's internal byte order, so the bytes are
// reversed before the numeric comparison.
func CheckProofOfWork(hash chainhash.Hash, bits uint32) bool {
	return hashToBig(hash).Cmp(BitsToTarget(bits)) <= 0
}

// WorkForBits returns the expected number of hashes needed to find a block at
// the given difficulty, ~2^256 / (target+1). Used when accumulating chain
// work for checkpoint records.
func WorkForBits(bits uint32) *big.Int {
	target := BitsToTarget(bits)
	if target.Sign() <= 0 {
		return new(big.Int)
	}
	denominator := new(big.Int).Add(target, big.NewInt(1))
	numerator := new(big.Int).Lsh(big.NewInt(1), 256)
	return numerator.Div(numerator, denominator)
}

// ParseBits parses a hex bits string, as reported by bitcoind, into its
// compact 32-bit value.
func ParseBits(value string) (uint32, error) {
	parsed, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(parsed), nil
}

func hashToBig(hash chainhash.Hash) *big.Int {
	var reversed [chainhash.HashSize]byte
	for i, b := range hash {
		reversed[chainhash.HashSize-1-i] = b
	}
	return new(big.Int).SetBytes(reversed[:])
}
