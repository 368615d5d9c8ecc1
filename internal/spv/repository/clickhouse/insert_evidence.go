package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
)

// InsertEvidence stores verified payout evidence rows in ClickHouse.
func (r *Repository) InsertEvidence(ctx context.Context, records []model.PayoutEvidence) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("insert_evidence", firstNetwork(records), err, start)
	}()

	if len(records) == 0 {
		return nil
	}

	const query = `
INSERT INTO spv_payout_evidence (
	network,
	recipient,
	txid,
	output_index,
	amount,
	block_height,
	block_time,
	verified_at
) VALUES`

	batch, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare evidence batch: %w", err)
	}

	for _, record := range records {
		if err = batch.Append(
			string(record.Network),
			record.Recipient,
			record.TxID.String(),
			record.OutputIndex,
			record.Amount,
			record.BlockHeight,
			time.Unix(int64(record.BlockTime), 0).UTC(),
			record.VerifiedAt,
		); err != nil {
			return fmt.Errorf("append evidence: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func firstNetwork(records []model.PayoutEvidence) model.Network {
	if len(records) == 0 {
		return ""
	}
	return records[0].Network
}
