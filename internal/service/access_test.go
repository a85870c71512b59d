package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/srizd/clinishare/backend/internal/consent"
	"github.com/srizd/clinishare/backend/internal/docstore"
	"github.com/srizd/clinishare/backend/internal/domain"
	"github.com/srizd/clinishare/backend/internal/graphdb"
)

func newAccessFixture(t *testing.T) (*docstore.MemoryStore, *graphdb.MemoryClient, *AccessService) {
	t.Helper()
	store := docstore.NewMemoryStore()
	graph := graphdb.NewMemoryClient()
	svc := NewAccessService(store, consent.New(graph), discardLogger())
	svc.WithClock(testClock)

	var n int
	svc.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("entry-%d", n)
	})
	return store, graph, svc
}

func TestLogAccessAppendsAndMirrors(t *testing.T) {
	store, graph, svc := newAccessFixture(t)
	ctx := context.Background()
	session := Session{Address: doctorAddr, Role: domain.RoleDoctor}

	entry, err := svc.LogAccess(ctx, session, patientAddr, domain.AccessView, "General Hospital")
	if err != nil {
		t.Fatalf("log access: %v", err)
	}
	if entry.Accessor != doctorAddr || entry.Patient != patientAddr {
		t.Fatalf("unexpected entry %+v", entry)
	}

	logs, err := store.ListAccessLogsForPatient(ctx, patientAddr)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(logs))
	}

	writes := graph.WriteCalls()
	if len(writes) != 1 {
		t.Fatalf("expected 1 mirrored write, got %d", len(writes))
	}
	if writes[0].Params["action"] != "view" {
		t.Fatalf("expected mirrored view action, got %v", writes[0].Params["action"])
	}
}

func TestLogAccessSurvivesMirrorFailure(t *testing.T) {
	store, graph, svc := newAccessFixture(t)
	graph.WithError(errors.New("graph down"))
	ctx := context.Background()

	if _, err := svc.LogAccess(ctx, Session{Address: doctorAddr}, patientAddr, domain.AccessView, ""); err != nil {
		t.Fatalf("expected audit append to succeed despite mirror failure, got %v", err)
	}

	logs, err := store.ListAccessLogsForPatient(ctx, patientAddr)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected audit entry despite mirror failure, got %d", len(logs))
	}
}

func TestGrantAndRevokeConsentWriteAuditTrail(t *testing.T) {
	store, graph, svc := newAccessFixture(t)
	ctx := context.Background()
	session := Session{Address: patientAddr, Role: domain.RolePatient}

	if err := svc.GrantConsent(ctx, session, "General Hospital"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := svc.RevokeConsent(ctx, session, "General Hospital"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	logs, err := store.ListAccessLogsForPatient(ctx, patientAddr)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(logs))
	}

	actions := map[domain.AccessAction]bool{}
	for _, entry := range logs {
		actions[entry.Action] = true
	}
	if !actions[domain.AccessGrant] || !actions[domain.AccessRevoke] {
		t.Fatalf("expected grant and revoke entries, got %v", actions)
	}

	// Each operation mirrors the audit edge plus the consent edge itself.
	if writes := graph.WriteCalls(); len(writes) != 4 {
		t.Fatalf("expected 4 mirrored writes, got %d", len(writes))
	}
}

func TestGrantConsentRequiresInstitution(t *testing.T) {
	_, _, svc := newAccessFixture(t)

	err := svc.GrantConsent(context.Background(), Session{Address: patientAddr}, "  ")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestConsentQueriesWithoutMirror(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := NewAccessService(store, nil, discardLogger())
	ctx := context.Background()

	ok, err := svc.HasConsent(ctx, patientAddr, "General Hospital")
	if err != nil {
		t.Fatalf("has consent: %v", err)
	}
	if ok {
		t.Fatal("expected no consent without a graph mirror")
	}

	grants, err := svc.ConsentedInstitutions(ctx, patientAddr)
	if err != nil {
		t.Fatalf("consented institutions: %v", err)
	}
	if grants != nil {
		t.Fatalf("expected nil grants, got %v", grants)
	}
}
