package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/srizd/clinishare/backend/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		patients    = flag.Int("patients", cfg.NumPatients, "number of patient records to generate")
		doctors     = flag.Int("doctors", cfg.NumDoctors, "number of doctor accounts to generate")
		researchers = flag.Int("researchers", cfg.NumResearchers, "number of researcher accounts to generate")
		perUser     = flag.Int("research-per-user", cfg.ResearchPerUser, "maximum research submissions per approved researcher")
		approved    = flag.Float64("approved-chance", cfg.ApprovedChance, "probability a submission is already approved")
		rejected    = flag.Float64("rejected-chance", cfg.RejectedChance, "probability a submission is already rejected")
		seed        = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir   = flag.String("output-dir", "data", "directory to write the dataset files")
		writeStdout = flag.Bool("stdout", false, "write combined dataset to stdout instead of files")
	)
	flag.Parse()

	genCfg := generator.Config{
		NumPatients:     *patients,
		NumDoctors:      *doctors,
		NumResearchers:  *researchers,
		ResearchPerUser: *perUser,
		ApprovedChance:  clampProbability(*approved),
		RejectedChance:  clampProbability(*rejected),
		Seed:            *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gen := generator.New(genCfg)
	dataset, err := gen.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		if err := json.NewEncoder(os.Stdout).Encode(dataset); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset to stdout: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := generator.WriteDataset(dataset, *outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "Generated %d profiles, %d patient records, and %d research submissions into %s\n",
		len(dataset.Profiles), len(dataset.Patients), len(dataset.Research), *outputDir)
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
