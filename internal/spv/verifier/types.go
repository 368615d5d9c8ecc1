package verifier

import (
	"context"
	"time"

	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
)

type (
	// CheckpointReader supplies attested trust anchors. A zero-valued
	// checkpoint means the height has never been attested.
	CheckpointReader interface {
		Checkpoint(ctx context.Context, height uint32) (model.Checkpoint, error)
	}

	// RecipientRegistry resolves a credit-engine identity to the pubkey hash
	// its payouts must pay. A zero hash means "not registered".
	RecipientRegistry interface {
		ExpectedHash(ctx context.Context, identity string) ([20]byte, error)
	}

	// PayoutLedger is the replay-protection set. MarkProcessed performs the
	// check-then-insert atomically and returns model.ErrReplay when the key is
	// already present; an entry, once present, can never be removed.
	PayoutLedger interface {
		MarkProcessed(ctx context.Context, key model.PayoutKey) error
		IsProcessed(ctx context.Context, key model.PayoutKey) (bool, error)
	}

	// Metrics records verification outcomes.
	Metrics interface {
		ObserveVerify(err error, started time.Time)
	}
)
