package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/srizd/clinishare/backend/internal/config"
	"github.com/srizd/clinishare/backend/internal/docstore"
	"github.com/srizd/clinishare/backend/internal/domain"
	"github.com/srizd/clinishare/backend/internal/logging"
)

var errMissingDataset = errors.New("dataset not found")

func main() {
	var (
		datasetDir = flag.String("dataset-dir", "./data", "Directory containing the generated dataset files")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "seed")

	dataset, err := loadDataset(*datasetDir)
	if err != nil {
		logger.Error("dataset resolution failed", "error", err)
		os.Exit(1)
	}
	if len(dataset.profiles) == 0 {
		logger.Error("profiles dataset empty", "dir", *datasetDir)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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

	start := time.Now()
	logger.Info("seeding profiles", "count", len(dataset.profiles))
	for _, profile := range dataset.profiles {
		if err := store.PutProfile(ctx, profile); err != nil {
			logger.Error("profile seed failed", "address", profile.Address, "error", err)
			os.Exit(1)
		}
	}

	logger.Info("seeding verification requests", "count", len(dataset.verifications))
	for _, req := range dataset.verifications {
		if err := store.PutVerification(ctx, req); err != nil {
			logger.Error("verification seed failed", "address", req.Address, "error", err)
			os.Exit(1)
		}
	}

	logger.Info("seeding patient records", "count", len(dataset.patients))
	for _, rec := range dataset.patients {
		if err := store.PutPatientRecord(ctx, rec); err != nil {
			logger.Error("patient seed failed", "address", rec.Address, "error", err)
			os.Exit(1)
		}
	}

	logger.Info("seeding research submissions", "count", len(dataset.research))
	for _, sub := range dataset.research {
		if err := store.InsertResearch(ctx, sub); err != nil {
			logger.Error("research seed failed", "id", sub.ID, "error", err)
			os.Exit(1)
		}
	}

	logger.Info("seeding complete",
		"duration", time.Since(start).String(),
		"profiles", len(dataset.profiles),
		"patients", len(dataset.patients),
		"research", len(dataset.research),
	)
}

type dataset struct {
	profiles      []domain.UserProfile
	verifications []domain.VerificationRequest
	patients      []domain.PatientRecord
	research      []domain.ResearchSubmission
}

func loadDataset(dir string) (dataset, error) {
	var ds dataset
	if err := loadJSON(filepath.Join(dir, "profiles.json"), &ds.profiles); err != nil {
		return dataset{}, err
	}
	if err := loadJSON(filepath.Join(dir, "verifications.json"), &ds.verifications); err != nil {
		return dataset{}, err
	}
	if err := loadJSON(filepath.Join(dir, "patients.json"), &ds.patients); err != nil {
		return dataset{}, err
	}
	if err := loadJSON(filepath.Join(dir, "research.json"), &ds.research); err != nil {
		return dataset{}, err
	}
	return ds, nil
}

func loadJSON(path string, target any) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", errMissingDataset, path)
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
