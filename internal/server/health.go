package server

import (
	"context"
	"fmt"

	"github.com/srizd/clinishare/backend/internal/graphdb"
)

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// Pinger is implemented by stores that can confirm connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreHealthService verifies backing-store connectivity as part of health
// checks. Either probe target may be nil.
type StoreHealthService struct {
	Store Pinger
	Graph graphdb.Client
}

// Probe implements the HealthService interface.
func (s StoreHealthService) Probe(ctx context.Context) error {
	if s.Store != nil {
		if err := s.Store.Ping(ctx); err != nil {
			return fmt.Errorf("document store: %w", err)
		}
	}
	if s.Graph != nil {
		if err := s.Graph.VerifyConnectivity(ctx); err != nil {
			return fmt.Errorf("graph: %w", err)
		}
	}
	return nil
}
