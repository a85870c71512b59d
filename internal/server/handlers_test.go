package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/srizd/clinishare/backend/internal/docstore"
	"github.com/srizd/clinishare/backend/internal/domain"
	"github.com/srizd/clinishare/backend/internal/ledger"
	"github.com/srizd/clinishare/backend/internal/pin"
	"github.com/srizd/clinishare/backend/internal/service"
)

const (
	testAdmin   = "0xad0000000000000000000000000000000000000000000000000000000000aa"
	testDoctor  = "0xd0c000000000000000000000000000000000000000000000000000000000bb"
	testPatient = "0xfeed00000000000000000000000000000000000000000000000000000000cc"
)

type handlerFixture struct {
	store    *docstore.MemoryStore
	chain    *ledger.MemoryClient
	handlers *APIHandlers
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	store := docstore.NewMemoryStore()
	pinner := pin.NewMemoryPinner()
	chain := ledger.NewMemoryClient()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	policy := service.NewReviewPolicy(store, []string{testAdmin})
	rewards := service.NewRewardService(store, chain, nil, logger)
	submissions := service.NewSubmissionService(store, pinner, nil, logger)
	reviews := service.NewReviewService(store, policy, rewards, nil, nil, logger)
	auth := service.NewAuthService(store, "test-secret", 0)
	profiles := service.NewProfileService(store)
	access := service.NewAccessService(store, nil, logger)

	return &handlerFixture{
		store:    store,
		chain:    chain,
		handlers: NewAPIHandlers(logger, auth, profiles, submissions, reviews, rewards, access),
	}
}

func withSession(req *http.Request, address string, role domain.Role) *http.Request {
	ctx := context.WithValue(req.Context(), sessionContextKey, service.Session{Address: address, Role: role})
	return req.WithContext(ctx)
}

func TestHandleVerificationsSubmitAndReview(t *testing.T) {
	fx := newHandlerFixture(t)

	body := `{"role":"Doctor","nmrNumber":"NMR-123","institution":"General Hospital","yearsExperience":7}`
	req := httptest.NewRequest(http.MethodPost, "/verifications", strings.NewReader(body))
	req = withSession(req, testDoctor, domain.RoleExplorer)
	rec := httptest.NewRecorder()

	fx.handlers.handleVerifications(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	reviewBody := `{"approve":true,"notes":"credentials verified against registry"}`
	req = httptest.NewRequest(http.MethodPost, "/verifications/"+testDoctor+"/review", strings.NewReader(reviewBody))
	req = withSession(req, testAdmin, domain.RoleExplorer)
	rec = httptest.NewRecorder()

	fx.handlers.handleVerificationByAddress(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var reviewed domain.VerificationRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &reviewed); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if reviewed.Status != domain.StatusApproved {
		t.Fatalf("expected approved status, got %s", reviewed.Status)
	}

	profile, err := fx.store.GetProfile(context.Background(), testDoctor)
	if err != nil {
		t.Fatalf("fetch profile: %v", err)
	}
	if !profile.IsVerifiedDoctor() {
		t.Fatalf("expected verified doctor profile, got role=%s status=%s", profile.Role, profile.VerificationStatus)
	}
}

func TestHandleVerificationReviewRequiresAdmin(t *testing.T) {
	fx := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/verifications/"+testDoctor+"/review", strings.NewReader(`{"approve":true}`))
	req = withSession(req, testDoctor, domain.RoleDoctor)
	rec := httptest.NewRecorder()

	fx.handlers.handleVerificationByAddress(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
}

func TestHandlePatientUploadAndReview(t *testing.T) {
	fx := newHandlerFixture(t)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("age", "42")
	_ = form.WriteField("caseDetectionDate", "2025-11-03")
	part, err := form.CreateFormFile("prescription", "rx.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("prescription scan bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "/patients", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req = withSession(req, testPatient, domain.RoleExplorer)
	rec := httptest.NewRecorder()

	fx.handlers.handlePatients(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var uploaded domain.PatientRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &uploaded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if uploaded.Prescription == nil || uploaded.Prescription.CID == "" {
		t.Fatalf("expected pinned prescription, got %+v", uploaded.Prescription)
	}
	if uploaded.Status != domain.PatientPending {
		t.Fatalf("expected pending status, got %s", uploaded.Status)
	}

	req = httptest.NewRequest(http.MethodPost, "/patients/"+testPatient+"/review", strings.NewReader(`{"approve":true,"notes":"prescription is consistent"}`))
	req = withSession(req, testAdmin, domain.RoleExplorer)
	rec = httptest.NewRecorder()

	fx.handlers.handlePatientByAddress(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	reward, err := fx.store.GetReward(context.Background(), domain.RewardKey(testPatient, domain.PatientRewardCause()))
	if err != nil {
		t.Fatalf("expected reward recorded: %v", err)
	}
	if reward.Amount != domain.PatientRewardOctas {
		t.Fatalf("expected reward of %d octas, got %d", domain.PatientRewardOctas, reward.Amount)
	}
}

func TestHandlePatientReviewWithoutNotes(t *testing.T) {
	fx := newHandlerFixture(t)

	if err := fx.store.PutPatientRecord(context.Background(), domain.PatientRecord{
		Address: testPatient,
		Age:     30,
		Status:  domain.PatientPending,
	}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	for _, body := range []string{`{"approve":false}`, `{"approve":true}`} {
		req := httptest.NewRequest(http.MethodPost, "/patients/"+testPatient+"/review", strings.NewReader(body))
		req = withSession(req, testAdmin, domain.RoleExplorer)
		rec := httptest.NewRecorder()

		fx.handlers.handlePatientByAddress(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", body, rec.Code)
		}
	}
}

func TestHandlePatientReviewConflictOnRepeat(t *testing.T) {
	fx := newHandlerFixture(t)

	if err := fx.store.PutPatientRecord(context.Background(), domain.PatientRecord{
		Address: testPatient,
		Age:     30,
		Status:  domain.PatientPending,
	}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	review := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/patients/"+testPatient+"/review", strings.NewReader(`{"approve":true,"notes":"prescription is consistent"}`))
		req = withSession(req, testAdmin, domain.RoleExplorer)
		rec := httptest.NewRecorder()
		fx.handlers.handlePatientByAddress(rec, req)
		return rec
	}

	if rec := review(); rec.Code != http.StatusOK {
		t.Fatalf("first review: expected status 200, got %d", rec.Code)
	}
	if rec := review(); rec.Code != http.StatusConflict {
		t.Fatalf("second review: expected status 409, got %d", rec.Code)
	}
}

func TestHandleResearchSubmitListMine(t *testing.T) {
	fx := newHandlerFixture(t)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("title", "Adherence drop-off study")
	_ = form.WriteField("diseaseFocus", "Tuberculosis")
	part, err := form.CreateFormFile("document", "paper.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("manuscript bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "/research", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req = withSession(req, testDoctor, domain.RoleResearcher)
	rec := httptest.NewRecorder()

	fx.handlers.handleResearch(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/research?mine=true", nil)
	req = withSession(req, testDoctor, domain.RoleResearcher)
	rec = httptest.NewRecorder()

	fx.handlers.handleResearch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var subs []domain.ResearchSubmission
	if err := json.Unmarshal(rec.Body.Bytes(), &subs); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(subs))
	}
}

func TestHandleWalletBalance(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.chain.SetBalance(testPatient, 3*domain.OctasPerAPT)

	req := httptest.NewRequest(http.MethodGet, "/wallet/balance", nil)
	req = withSession(req, testPatient, domain.RolePatient)
	rec := httptest.NewRecorder()

	fx.handlers.handleWalletBalance(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var payload balanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.APT != 3 {
		t.Fatalf("expected balance of 3 APT, got %f", payload.APT)
	}
}

func TestHandleRewardStatsRequiresAdmin(t *testing.T) {
	fx := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/rewards/stats", nil)
	req = withSession(req, testPatient, domain.RolePatient)
	rec := httptest.NewRecorder()

	fx.handlers.handleRewardStats(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
}

func TestHandleAccessLogsAuditTrail(t *testing.T) {
	fx := newHandlerFixture(t)

	body := `{"patient":"` + testPatient + `","action":"view","institution":"General Hospital"}`
	req := httptest.NewRequest(http.MethodPost, "/access-logs", strings.NewReader(body))
	req = withSession(req, testAdmin, domain.RoleExplorer)
	rec := httptest.NewRecorder()

	fx.handlers.handleAccessLogs(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/access-logs/"+testPatient, nil)
	req = withSession(req, testPatient, domain.RolePatient)
	rec = httptest.NewRecorder()

	fx.handlers.handleAccessLogsByPatient(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var entries []domain.AccessLogEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	if entries[0].Action != domain.AccessView {
		t.Fatalf("expected view action, got %s", entries[0].Action)
	}
}

func TestHandleAccessLogsForeignPatientForbidden(t *testing.T) {
	fx := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/access-logs/"+testPatient, nil)
	req = withSession(req, testDoctor, domain.RoleDoctor)
	rec := httptest.NewRecorder()

	fx.handlers.handleAccessLogsByPatient(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
}
