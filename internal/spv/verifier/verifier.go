// Package verifier orchestrates SPV payout verification: structural bounds,
// checkpoint-anchored header-chain validation, Merkle inclusion, output
// extraction and replay protection. Every gate is a terminal rejection; state
// advances exactly once, on full success.
package verifier

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/header"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/merkle"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/script"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/tx"
	"go.uber.org/zap"
)

// Service verifies payout proofs against attested checkpoints and records
// consumed payouts.
type Service struct {
	logger      *zap.Logger
	network     model.Network
	checkpoints CheckpointReader
	recipients  RecipientRegistry
	ledger      PayoutLedger
	metrics     Metrics
}

// NewService builds a Service with its collaborators.
func NewService(
	checkpoints CheckpointReader,
	recipients RecipientRegistry,
	ledger PayoutLedger,
	metrics Metrics,
	network model.Network,
	logger *zap.Logger,
) (*Service, error) {
	if checkpoints == nil || recipients == nil || ledger == nil {
		return nil, errors.New("checkpoint reader, recipient registry and payout ledger are required")
	}
	if metrics == nil {
		return nil, errors.New("verifier metrics is required")
	}
	return &Service{
		logger:      logger.With(zap.String("network", string(network))),
		network:     network,
		checkpoints: checkpoints,
		recipients:  recipients,
		ledger:      ledger,
		metrics:     metrics,
	}, nil
}

// VerifyPayout runs the full verification pipeline over proof and, on
// success, marks the payout consumed and returns its evidence record.
func (s *Service) VerifyPayout(ctx context.Context, proof model.SpvProof) (model.PayoutEvidence, error) {
	started := time.Now()
	evidence, err := s.verify(ctx, proof)
	s.metrics.ObserveVerify(err, started)
	if err != nil {
		s.logger.Info("payout proof rejected",
			zap.String("recipient", proof.Recipient),
			zap.String("category", model.ErrorCategory(err)),
			zap.Error(err))
		return model.PayoutEvidence{}, err
	}

	s.logger.Info("payout verified",
		zap.String("recipient", evidence.Recipient),
		zap.String("txid", evidence.TxID.String()),
		zap.Uint32("vout", evidence.OutputIndex),
		zap.Uint64("amount_sats", evidence.Amount),
		zap.Uint32("height", evidence.BlockHeight))
	return evidence, nil
}

func (s *Service) verify(ctx context.Context, proof model.SpvProof) (model.PayoutEvidence, error) {
	if err := checkBounds(proof); err != nil {
		return model.PayoutEvidence{}, err
	}

	expectedHash, err := s.recipients.ExpectedHash(ctx, proof.Recipient)
	if err != nil {
		return model.PayoutEvidence{}, fmt.Errorf("recipient lookup: %w", err)
	}
	if expectedHash == ([20]byte{}) {
		return model.PayoutEvidence{}, fmt.Errorf("%w: recipient %q is not registered",
			model.ErrRecipient, proof.Recipient)
	}

	checkpoint, err := s.checkpoints.Checkpoint(ctx, proof.CheckpointHeight)
	if err != nil {
		return model.PayoutEvidence{}, fmt.Errorf("checkpoint lookup: %w", err)
	}
	if checkpoint.IsZero() {
		return model.PayoutEvidence{}, fmt.Errorf("%w: no checkpoint at height %d",
			model.ErrChainValidation, proof.CheckpointHeight)
	}

	_, target, err := header.VerifyChain(checkpoint.Hash, proof.Headers)
	if err != nil {
		return model.PayoutEvidence{}, err
	}

	txid := chainhash.DoubleHashH(proof.RawTx)
	if !merkle.Verify(txid, target.MerkleRoot, proof.Siblings, proof.TxIndex) {
		return model.PayoutEvidence{}, fmt.Errorf(
			"%w: transaction %s does not resolve to merkle root %s at index %d",
			model.ErrInclusion, txid, target.MerkleRoot, proof.TxIndex)
	}

	output, err := tx.ParseOutput(proof.RawTx, proof.OutputIndex)
	if err != nil {
		return model.PayoutEvidence{}, err
	}
	paidHash, scriptType := script.ExtractPubkeyHash(output.ScriptPubKey)
	if scriptType == script.TypeUnsupported {
		return model.PayoutEvidence{}, fmt.Errorf("%w: output %d script is not a keyhash shape",
			model.ErrRecipient, proof.OutputIndex)
	}
	if paidHash != expectedHash {
		return model.PayoutEvidence{}, fmt.Errorf(
			"%w: output %d pays %x, recipient %q expects %x",
			model.ErrRecipient, proof.OutputIndex, paidHash, proof.Recipient, expectedHash)
	}

	key := PayoutKeyFor(txid, proof.OutputIndex)
	if err := s.ledger.MarkProcessed(ctx, key); err != nil {
		return model.PayoutEvidence{}, fmt.Errorf("payout %s vout %d: %w", txid, proof.OutputIndex, err)
	}

	return model.PayoutEvidence{
		Network:     s.network,
		Recipient:   proof.Recipient,
		TxID:        txid,
		OutputIndex: proof.OutputIndex,
		Amount:      output.Value,
		BlockHeight: proof.CheckpointHeight + uint32(len(proof.Headers)),
		BlockTime:   target.Timestamp,
		VerifiedAt:  time.Now().UTC(),
	}, nil
}

// IsPayoutProcessed reports whether the (txid, vout) pair has been consumed.
func (s *Service) IsPayoutProcessed(ctx context.Context, txid chainhash.Hash, outputIndex uint32) (bool, error) {
	return s.ledger.IsProcessed(ctx, PayoutKeyFor(txid, outputIndex))
}

// PayoutKeyFor derives the replay-protection key for a (txid, vout) pair.
func PayoutKeyFor(txid chainhash.Hash, outputIndex uint32) model.PayoutKey {
	buf := make([]byte, 0, chainhash.HashSize+4)
	buf = append(buf, txid[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, outputIndex)
	return model.PayoutKey(chainhash.DoubleHashH(buf))
}

// Bounds are checked before any hashing so an oversized proof costs nothing.
func checkBounds(proof model.SpvProof) error {
	if len(proof.Headers) < MinConfirmations {
		return fmt.Errorf("%w: %d headers, need at least %d confirmations",
			model.ErrChainValidation, len(proof.Headers), MinConfirmations)
	}
	if len(proof.Headers) > MaxHeaderChain {
		return fmt.Errorf("%w: %d headers exceeds chain limit %d",
			model.ErrChainValidation, len(proof.Headers), MaxHeaderChain)
	}
	if len(proof.Siblings) > MaxMerkleDepth {
		return fmt.Errorf("%w: merkle depth %d exceeds limit %d",
			model.ErrInclusion, len(proof.Siblings), MaxMerkleDepth)
	}
	if len(proof.RawTx) > MaxTxSize {
		return fmt.Errorf("%w: transaction size %d exceeds limit %d",
			model.ErrFormat, len(proof.RawTx), MaxTxSize)
	}
	return nil
}
