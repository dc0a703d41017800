// Package worker initializes and runs the notarization worker: it wires the
// document repository, chain client, transaction monitor, certificate signer
// and job consumer together, and handles graceful shutdown.
package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/absnotary/internal/logging"
	"github.com/dmitrijs2005/absnotary/internal/worker/assets"
	"github.com/dmitrijs2005/absnotary/internal/worker/certs"
	"github.com/dmitrijs2005/absnotary/internal/worker/chain"
	"github.com/dmitrijs2005/absnotary/internal/worker/config"
	"github.com/dmitrijs2005/absnotary/internal/worker/db"
	"github.com/dmitrijs2005/absnotary/internal/worker/dispatch"
	"github.com/dmitrijs2005/absnotary/internal/worker/lease"
	"github.com/dmitrijs2005/absnotary/internal/worker/metrics"
	"github.com/dmitrijs2005/absnotary/internal/worker/monitor"
	"github.com/dmitrijs2005/absnotary/internal/worker/notary"
	"github.com/dmitrijs2005/absnotary/internal/worker/retry"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	manager  db.RepositoryManager
	consumer *dispatch.Consumer
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSON(cfg.LogLevel)

	manager, err := db.NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	chainClient := chain.NewRPCClient(cfg.ChainRPCEndpoint, cfg.ChainContractAddress, cfg.ChainAccountAddress, logger)

	uploader, err := assets.NewS3Uploader(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	waiter := monitor.New(chainClient, monitor.Config{
		RequiredConfirmations: cfg.RequiredConfirmations,
		PollInterval:          cfg.PollInterval,
		MaxAttempts:           cfg.MaxPollAttempts,
		MaxWait:               cfg.MaxConfirmationWait,
	}, logger)

	signer, err := certs.NewSigner(cfg.SigningKeyHex, cfg.AllowUnsignedCerts, cfg.CertStoragePath,
		cfg.ChainName, cfg.CertificateVersion, cfg.ExplorerBaseURL, certs.NewPDFRenderer(), logger)
	if err != nil {
		return nil, fmt.Errorf("signer init error: %w", err)
	}

	var locker lease.Locker = &lease.Noop{}
	if cfg.RedisAddr != "" {
		locker = lease.NewRedisLocker(cfg.RedisAddr, cfg.LeaseTTL)
	}

	m := metrics.New()

	retryCfg := retry.Config{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		Multiplier:   cfg.BackoffMultiplier,
	}
	service := notary.NewService(manager.Documents(), chainClient, uploader, waiter, signer, locker, m, logger,
		notary.Config{
			SubmitRetry:      retryCfg,
			ConfirmRetry:     retryCfg,
			MintOwnerAddress: cfg.ChainAccountAddress,
		})

	consumer := dispatch.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup, service, m, logger)

	return &App{config: cfg, logger: logger, manager: manager, consumer: consumer}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting worker")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := metrics.Serve(ctx, app.config.MetricsAddr); err != nil {
			app.logger.Error(ctx, "metrics server stopped", "error", err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.consumer.Start(ctx); err != nil {
			app.logger.Error(ctx, "consumer stopped", "error", err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.manager.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}

	app.logger.Info(ctx, "worker stopped")
}
