package model

import "errors"

// Verification failures are classified into a small set of categories so
// operators can tell a malformed proof apart from a misdirected payment or a
// replay. Call sites wrap these sentinels with fmt.Errorf("...: %w", ...) and
// callers classify with errors.Is.
var (
	// ErrFormat marks malformed or truncated binary input.
	ErrFormat = errors.New("format error")
	// ErrChainValidation marks a broken header link, failing proof-of-work or
	// an out-of-bounds header chain.
	ErrChainValidation = errors.New("chain validation error")
	// ErrInclusion marks a Merkle proof that does not resolve to the claimed
	// root, or one deeper than the allowed limit.
	ErrInclusion = errors.New("inclusion error")
	// ErrRecipient marks an unregistered recipient, an unsupported script
	// type or a mismatched pubkey hash.
	ErrRecipient = errors.New("recipient error")
	// ErrReplay marks a payout key that has already been consumed. The caller
	// must not resubmit.
	ErrReplay = errors.New("replay error")
	// ErrAuthorization marks a mutating call from a caller that is not the
	// configured attestor.
	ErrAuthorization = errors.New("authorization error")
	// ErrNotFound marks an absent checkpoint or record.
	ErrNotFound = errors.New("not found")
)

// ErrorCategory returns a stable label for the category of err, for metrics
// and transport responses.
func ErrorCategory(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrChainValidation):
		return "chain"
	case errors.Is(err, ErrInclusion):
		return "inclusion"
	case errors.Is(err, ErrRecipient):
		return "recipient"
	case errors.Is(err, ErrReplay):
		return "replay"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
