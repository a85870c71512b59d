package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/srizd/clinishare/backend/internal/config"
	"github.com/srizd/clinishare/backend/internal/consent"
	"github.com/srizd/clinishare/backend/internal/docstore"
	"github.com/srizd/clinishare/backend/internal/graphdb"
	"github.com/srizd/clinishare/backend/internal/ledger"
	"github.com/srizd/clinishare/backend/internal/logging"
	"github.com/srizd/clinishare/backend/internal/notify"
	"github.com/srizd/clinishare/backend/internal/pin"
	"github.com/srizd/clinishare/backend/internal/server"
	"github.com/srizd/clinishare/backend/internal/service"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

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

	graphClient, mirror := buildConsentMirror(ctx, logger, cfg)
	defer func() {
		if graphClient != nil {
			if err := graphClient.Close(context.Background()); err != nil {
				logger.Warn("closing graph client failed", "error", err)
			}
		}
	}()

	pinner, err := pin.NewPinataClient(pin.PinataOptions{
		Endpoint:    cfg.Pinata.Endpoint,
		GatewayBase: cfg.Pinata.GatewayBase,
		JWT:         cfg.Pinata.JWT,
		Timeout:     cfg.Pinata.UploadTimeout,
	})
	if err != nil {
		logger.Error("failed to create pinning client", "error", err)
		os.Exit(1)
	}

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

	authService := service.NewAuthService(store, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	profileService := service.NewProfileService(store)
	policy := service.NewReviewPolicy(store, cfg.Review.AdminAddresses())
	rewardService := service.NewRewardService(store, chain, notifier, logger)
	submissionService := service.NewSubmissionService(store, pinner, mirror, logger)
	reviewService := service.NewReviewService(store, policy, rewardService, mirror, notifier, logger)
	accessService := service.NewAccessService(store, mirror, logger)

	apiHandlers := server.NewAPIHandlers(logger,
		authService, profileService, submissionService, reviewService, rewardService, accessService)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.StoreHealthService{Store: store, Graph: graphClient},
		API:              apiHandlers,
		Auth:             server.NewAuthMiddleware(authService),
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Settlement.Enabled {
		settler := service.NewSettler(rewardService, cfg.Settlement.Workers, logger)
		go settler.Run(runCtx, cfg.Settlement.Interval)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// buildConsentMirror connects the optional graph mirror. An unset GRAPH_URI
// disables it rather than failing startup.
func buildConsentMirror(ctx context.Context, logger *slog.Logger, cfg config.Config) (graphdb.Client, service.ConsentMirror) {
	if cfg.Graph.URI == "" {
		logger.Info("graph mirror disabled, GRAPH_URI not set")
		return nil, nil
	}

	client, err := graphdb.NewNeo4jClient(ctx, graphdb.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	})
	if err != nil {
		logger.Warn("graph mirror unavailable, continuing without it", "error", err)
		return nil, nil
	}
	return client, consent.New(client)
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
