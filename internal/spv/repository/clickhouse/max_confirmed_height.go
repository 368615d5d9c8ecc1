package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
)

// MaxConfirmedHeight returns the highest block height with archived
// evidence for a network.
func (r *Repository) MaxConfirmedHeight(ctx context.Context, network model.Network) (uint32, error) {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("max_confirmed_height", network, err, start)
	}()

	const query = `
SELECT coalesce(max(block_height), toUInt32(0)) AS max_height
FROM spv_payout_evidence
WHERE network = ?`

	rows, err := r.conn.Query(ctx, query, network)
	if err != nil {
		return 0, fmt.Errorf("query max confirmed height: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	var height uint32
	if !rows.Next() {
		return 0, fmt.Errorf("max confirmed height not found")
	}

	if err = rows.Scan(&height); err != nil {
		return 0, fmt.Errorf("scan max confirmed height: %w", err)
	}
	if err = rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate max confirmed height: %w", err)
	}

	return height, nil
}
