// Package main runs the SPV payout verification gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodnatureofminers/spvcredit-backend/internal/metrics"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/repository/clickhouse"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/service/archiver"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/store/bolt"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/verifier"
	"github.com/goodnatureofminers/spvcredit-backend/internal/transport"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type config struct {
	Addr          string        `long:"addr" env:"SPV_GATEWAY_ADDR" description:"listen address" default:":8000"`
	Network       model.Network `long:"network" env:"SPV_GATEWAY_NETWORK" description:"bitcoin network" default:"mainnet"`
	StorePath     string        `long:"store-path" env:"SPV_GATEWAY_STORE_PATH" description:"path to the bolt state file" default:"spv-gateway.db"`
	AttestorKey   string        `long:"attestor-key" env:"SPV_GATEWAY_ATTESTOR_KEY" description:"credential allowed to write checkpoints and recipients" required:"true"`
	ClickhouseDSN string        `long:"clickhouse-dsn" env:"SPV_GATEWAY_CLICKHOUSE_DSN" description:"evidence archive DSN; archival is disabled when empty"`
	FlushSize     int           `long:"archive-flush-size" env:"SPV_GATEWAY_ARCHIVE_FLUSH_SIZE" description:"evidence records per archive batch" default:"256"`
	FlushInterval time.Duration `long:"archive-flush-interval" env:"SPV_GATEWAY_ARCHIVE_FLUSH_INTERVAL" description:"max time evidence waits for archival" default:"5s"`
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
		logger.Fatal("spv gateway failed", zap.Error(err))
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

	verifySvc, err := verifier.NewService(
		store,
		store,
		store,
		metrics.NewVerifier(cfg.Network),
		cfg.Network,
		logger,
	)
	if err != nil {
		return fmt.Errorf("init verifier: %w", err)
	}

	var recorder transport.EvidenceRecorder
	if cfg.ClickhouseDSN != "" {
		repo, err := clickhouse.NewRepository(cfg.ClickhouseDSN, metrics.NewClickhouseRepository())
		if err != nil {
			return fmt.Errorf("init evidence repository: %w", err)
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				logger.Error("evidence repository not closed", zap.Error(closeErr))
			}
		}()

		archiveSvc, err := archiver.NewService(
			logger,
			repo,
			metrics.NewArchiver(cfg.Network),
			cfg.FlushSize,
			cfg.FlushInterval,
		)
		if err != nil {
			return fmt.Errorf("init archiver: %w", err)
		}
		archiveSvc.Start(ctx)
		defer archiveSvc.Stop()

		recorder = archiveSvc
	} else {
		logger.Warn("clickhouse dsn is empty; evidence archival disabled")
	}

	handler, err := transport.NewPayoutHandler(logger, verifySvc, store, store, recorder)
	if err != nil {
		return fmt.Errorf("init payout handler: %w", err)
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           cors.Default().Handler(mux),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down the http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown http server", zap.Error(err))
		}
	}()

	logger.Info("starting http server",
		zap.String("addr", cfg.Addr),
		zap.String("network", string(cfg.Network)),
	)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
