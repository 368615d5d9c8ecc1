// Package archiver streams verified payout evidence into the analytical
// archive in batches.
package archiver

import (
	"context"
	"errors"
	"time"

	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
	"github.com/goodnatureofminers/spvcredit-backend/pkg/batcher"
	"go.uber.org/zap"
)

type (
	EvidenceArchive interface {
		InsertEvidence(ctx context.Context, records []model.PayoutEvidence) error
	}

	Metrics interface {
		ObserveFlush(err error, records int, started time.Time)
	}
)

const (
	// DefaultFlushSize and DefaultFlushInterval bound how long verified
	// evidence sits in memory before reaching the archive.
	DefaultFlushSize     = 256
	DefaultFlushInterval = 5 * time.Second
	DefaultFlushRPS      = 10
)

// Service buffers evidence and flushes it to the archive by size or
// interval. Archival is best-effort: a failed flush is logged and
// recorded, never surfaced to the verification path.
type Service struct {
	logger  *zap.Logger
	batcher *batcher.Batcher[model.PayoutEvidence]
}

func NewService(
	logger *zap.Logger,
	archive EvidenceArchive,
	metrics Metrics,
	flushSize int,
	flushInterval time.Duration,
) (*Service, error) {
	if archive == nil {
		return nil, errors.New("evidence archive is required")
	}
	if metrics == nil {
		return nil, errors.New("metrics is required")
	}
	if flushSize <= 0 {
		flushSize = DefaultFlushSize
	}
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}

	s := &Service{logger: logger}
	s.batcher = batcher.New[model.PayoutEvidence](
		logger.Named("evidenceBatcher"),
		func(ctx context.Context, records []model.PayoutEvidence) error {
			start := time.Now()
			err := archive.InsertEvidence(ctx, records)
			metrics.ObserveFlush(err, len(records), start)
			return err
		},
		flushSize,
		flushInterval,
		DefaultFlushRPS,
	)
	return s, nil
}

// Start begins the background flushing loop.
func (s *Service) Start(ctx context.Context) {
	s.batcher.Start(ctx)
}

// Stop flushes buffered evidence and stops the loop.
func (s *Service) Stop() {
	s.batcher.Stop()
}

// Record queues evidence for archival.
func (s *Service) Record(ctx context.Context, evidence model.PayoutEvidence) error {
	return s.batcher.Add(ctx, evidence)
}
