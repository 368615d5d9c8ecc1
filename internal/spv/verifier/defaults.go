package verifier

const (
	// MinConfirmations is the fewest headers a proof may carry past its
	// checkpoint; the target block sits this deep or deeper.
	MinConfirmations = 6
	// MaxHeaderChain caps the submitted chain at roughly one day of blocks.
	// The cap also bounds exposure to the unchecked difficulty-retarget
	// boundary in header.VerifyChain.
	MaxHeaderChain = 144
	// MaxMerkleDepth caps the inclusion path; 2^20 transactions is far beyond
	// any real block.
	MaxMerkleDepth = 20
	// MaxTxSize caps the raw transaction a proof may carry.
	MaxTxSize = 4096
)
