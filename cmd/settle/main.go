package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/srizd/clinishare/backend/internal/config"
	"github.com/srizd/clinishare/backend/internal/docstore"
	"github.com/srizd/clinishare/backend/internal/ledger"
	"github.com/srizd/clinishare/backend/internal/logging"
	"github.com/srizd/clinishare/backend/internal/notify"
	"github.com/srizd/clinishare/backend/internal/service"
)

// settle runs a single settlement sweep over pending rewards and exits. It
// exists for cron-style deployments where the in-process settler loop is
// disabled.
func main() {
	var (
		workers = flag.Int("workers", 0, "number of concurrent settlement workers (default from SETTLEMENT_WORKERS)")
		timeout = flag.Duration("timeout", 10*time.Minute, "overall sweep deadline")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "settle")

	if cfg.Ledger.PrivateKeyHex == "" {
		logger.Error("APTOS_PRIVATE_KEY is required for settlement")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, *timeout)
	defer timeoutCancel()

	store, err := docstore.NewMongoStore(ctx, docstore.MongoOptions{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.Database,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
	})
	if err != nil {
		logger.Error("failed to connect document store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("closing document store failed", "error", err)
		}
	}()

	chain, err := ledger.NewAptosClient(ledger.AptosOptions{
		NodeURL:        cfg.Ledger.NodeURL,
		ChainID:        cfg.Ledger.ChainID,
		SourceAddress:  cfg.Ledger.SourceAddress,
		PrivateKeyHex:  cfg.Ledger.PrivateKeyHex,
		RequestTimeout: cfg.Ledger.RequestTimeout,
	})
	if err != nil {
		logger.Error("failed to create ledger client", "error", err)
		os.Exit(1)
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.SMTP.Host != "" {
		notifier = notify.NewMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Password)
	}

	rewards := service.NewRewardService(store, chain, notifier, logger)

	workerCount := *workers
	if workerCount <= 0 {
		workerCount = cfg.Settlement.Workers
	}
	settler := service.NewSettler(rewards, workerCount, logger)

	start := time.Now()
	settled, err := settler.ProcessPending(ctx)
	if err != nil {
		logger.Error("settlement sweep finished with errors", "settled", settled, "error", err)
		os.Exit(1)
	}
	logger.Info("settlement sweep complete", "settled", settled, "duration", time.Since(start).String())
}
