// Package main advances the checkpoint anchor from a file of raw block
// headers.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodnatureofminers/spvcredit-backend/internal/clock"
	"github.com/goodnatureofminers/spvcredit-backend/internal/metrics"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/service/headerscan"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/store/bolt"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

type config struct {
	StorePath      string        `long:"store-path" env:"ATTESTOR_STORE_PATH" description:"path to the bolt state file" default:"spv-gateway.db"`
	AttestorKey    string        `long:"attestor-key" env:"ATTESTOR_KEY" description:"attestor credential" required:"true"`
	Network        model.Network `long:"network" env:"ATTESTOR_NETWORK" description:"bitcoin network" default:"mainnet"`
	HeadersFile    string        `long:"headers-file" env:"ATTESTOR_HEADERS_FILE" description:"file with one hex-encoded 80-byte header per line" required:"true"`
	AttestInterval uint32        `long:"attest-interval" env:"ATTESTOR_ATTEST_INTERVAL" description:"blocks between checkpoints" default:"144"`
	Watch          bool          `long:"watch" env:"ATTESTOR_WATCH" description:"keep polling the headers file instead of exiting after one pass"`
	PollInterval   time.Duration `long:"poll-interval" env:"ATTESTOR_POLL_INTERVAL" description:"delay between passes in watch mode" default:"1m"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("checkpoint attestor failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	store, err := bolt.Open(cfg.StorePath, cfg.AttestorKey)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("state store not closed", zap.Error(closeErr))
		}
	}()

	svc, err := headerscan.NewService(
		logger,
		store,
		metrics.NewCheckpointStore(cfg.Network),
		cfg.Network,
		cfg.AttestorKey,
		cfg.AttestInterval,
	)
	if err != nil {
		return fmt.Errorf("init header scan: %w", err)
	}

	for {
		if err := advanceOnce(ctx, cfg, svc, store, logger); err != nil {
			if !cfg.Watch {
				return err
			}
			// Stale or partial files are expected between publisher runs.
			logger.Warn("pass failed", zap.Error(err))
		}

		if !cfg.Watch {
			return nil
		}
		if err := clock.SleepWithContext(ctx, cfg.PollInterval); err != nil {
			return err
		}
	}
}

func advanceOnce(ctx context.Context, cfg config, svc *headerscan.Service, store *bolt.Store, logger *zap.Logger) error {
	headers, err := readHeaders(cfg.HeadersFile)
	if err != nil {
		return err
	}
	if len(headers) == 0 {
		return fmt.Errorf("no headers in %s", cfg.HeadersFile)
	}

	written, err := svc.Advance(ctx, headers)
	if err != nil {
		return fmt.Errorf("advance checkpoints: %w", err)
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		return fmt.Errorf("load latest checkpoint: %w", err)
	}
	logger.Info("checkpoints advanced",
		zap.Int("written", written),
		zap.Uint32("latest_height", latest.Height),
		zap.String("latest_hash", latest.Hash.String()),
	)
	return nil
}

func readHeaders(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open headers file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var headers [][]byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		raw, err := hex.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("header line %d is not hex: %w", len(headers)+1, err)
		}
		headers = append(headers, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read headers file: %w", err)
	}
	return headers, nil
}
