// Package headerscan advances the checkpoint anchor from batches of raw
// block headers.
package headerscan

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/header"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
	"github.com/goodnatureofminers/spvcredit-backend/pkg/workerpool"
	"go.uber.org/zap"
)

type (
	CheckpointStore interface {
		Latest(ctx context.Context) (model.Checkpoint, error)
		Set(ctx context.Context, caller string, checkpoint model.Checkpoint) error
	}

	Metrics interface {
		ObserveSet(err error, height uint32, started time.Time)
	}
)

const (
	// DefaultAttestInterval spaces checkpoints one difficulty-period day
	// apart; verifiers only ever need the most recent one.
	DefaultAttestInterval = 144

	defaultWorkerCount = 8
)

// Service validates candidate header batches against the latest
// checkpoint and attests new checkpoints along the way. Headers with
// invalid proof-of-work or broken linkage reject the whole batch.
type Service struct {
	logger      *zap.Logger
	store       CheckpointStore
	metrics     Metrics
	network     model.Network
	attestor    string
	interval    uint32
	workerCount int
}

func NewService(
	logger *zap.Logger,
	store CheckpointStore,
	metrics Metrics,
	network model.Network,
	attestor string,
	interval uint32,
) (*Service, error) {
	if store == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if metrics == nil {
		return nil, errors.New("metrics is required")
	}
	if attestor == "" {
		return nil, errors.New("attestor credential is required")
	}
	if _, err := genesisHash(network); err != nil {
		return nil, err
	}
	if interval == 0 {
		interval = DefaultAttestInterval
	}

	return &Service{
		logger:      logger,
		store:       store,
		metrics:     metrics,
		network:     network,
		attestor:    attestor,
		interval:    interval,
		workerCount: defaultWorkerCount,
	}, nil
}

// Advance validates rawHeaders as a contiguous extension of the latest
// checkpoint (or the genesis block when no checkpoint exists yet) and
// attests a checkpoint every interval blocks plus one at the batch tip.
// It returns the number of checkpoints written.
func (s *Service) Advance(ctx context.Context, rawHeaders [][]byte) (int, error) {
	if len(rawHeaders) == 0 {
		return 0, nil
	}

	anchor, err := s.store.Latest(ctx)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return 0, fmt.Errorf("load latest checkpoint: %w", err)
	}

	anchorHash := anchor.Hash
	anchorHeight := anchor.Height
	anchorWork := anchor.ChainWork
	if anchor.IsZero() {
		genesis, err := genesisHash(s.network)
		if err != nil {
			return 0, err
		}
		anchorHash = *genesis
		anchorWork = nil
	}
	if anchorWork == nil {
		anchorWork = new(big.Int)
	}

	parsed := make([]header.BlockHeader, len(rawHeaders))
	for i, raw := range rawHeaders {
		h, err := header.Parse(raw)
		if err != nil {
			return 0, fmt.Errorf("header %d: %w", i, err)
		}
		parsed[i] = h
	}

	// Proof-of-work is the expensive check and independent per header,
	// so it runs ahead of the sequential linkage walk.
	indexes := make([]int, len(parsed))
	for i := range indexes {
		indexes[i] = i
	}
	err = workerpool.Process(ctx, s.workerCount, indexes, func(_ context.Context, i int) error {
		if !header.CheckProofOfWork(parsed[i].Hash(), parsed[i].Bits) {
			return fmt.Errorf("header %d: %w: proof of work below target", i, model.ErrChainValidation)
		}
		return nil
	}, nil)
	if err != nil {
		return 0, err
	}

	chainWork := new(big.Int).Set(anchorWork)
	prevHash := anchorHash
	written := 0
	for i, h := range parsed {
		if h.PrevBlock != prevHash {
			return written, fmt.Errorf("header %d: %w: does not extend %s", i, model.ErrChainValidation, prevHash)
		}
		prevHash = h.Hash()
		chainWork.Add(chainWork, header.WorkForBits(h.Bits))

		height := anchorHeight + uint32(i) + 1
		if height%s.interval == 0 || i == len(parsed)-1 {
			checkpoint := model.Checkpoint{
				Height:    height,
				Hash:      prevHash,
				ChainWork: new(big.Int).Set(chainWork),
				Timestamp: h.Timestamp,
				Bits:      h.Bits,
			}

			start := time.Now()
			err := s.store.Set(ctx, s.attestor, checkpoint)
			s.metrics.ObserveSet(err, height, start)
			if err != nil {
				return written, fmt.Errorf("attest checkpoint at height %d: %w", height, err)
			}
			written++
			s.logger.Info("checkpoint attested",
				zap.String("network", string(s.network)),
				zap.Uint32("height", height),
				zap.String("hash", prevHash.String()),
			)
		}
	}

	return written, nil
}

func genesisHash(network model.Network) (*chainhash.Hash, error) {
	switch network {
	case model.Mainnet:
		return chaincfg.MainNetParams.GenesisHash, nil
	case model.Testnet:
		return chaincfg.TestNet3Params.GenesisHash, nil
	case model.Regtest:
		return chaincfg.RegressionNetParams.GenesisHash, nil
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
}
