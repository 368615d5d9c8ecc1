package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
)

// EvidenceByRecipient returns archived evidence for a recipient, newest
// block first.
func (r *Repository) EvidenceByRecipient(ctx context.Context, network model.Network, recipient string, limit uint64) ([]model.PayoutEvidence, error) {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("evidence_by_recipient", network, err, start)
	}()

	const query = `
SELECT
	txid,
	output_index,
	amount,
	block_height,
	block_time,
	verified_at
FROM spv_payout_evidence
WHERE network = ? AND recipient = ?
ORDER BY block_height DESC, txid ASC, output_index ASC
LIMIT ?`

	rows, err := r.conn.Query(ctx, query, network, recipient, limit)
	if err != nil {
		return nil, fmt.Errorf("query evidence by recipient: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	var records []model.PayoutEvidence
	for rows.Next() {
		var (
			record    model.PayoutEvidence
			txid      string
			blockTime time.Time
		)
		record.Network = network
		record.Recipient = recipient
		if err = rows.Scan(
			&txid,
			&record.OutputIndex,
			&record.Amount,
			&record.BlockHeight,
			&blockTime,
			&record.VerifiedAt,
		); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}

		hash, parseErr := chainhash.NewHashFromStr(txid)
		if parseErr != nil {
			err = fmt.Errorf("parse evidence txid %q: %w", txid, parseErr)
			return nil, err
		}
		record.TxID = *hash
		record.BlockTime = uint32(blockTime.Unix())

		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}

	return records, nil
}
