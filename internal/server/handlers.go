package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/srizd/clinishare/backend/internal/docstore"
	"github.com/srizd/clinishare/backend/internal/domain"
	"github.com/srizd/clinishare/backend/internal/pin"
	"github.com/srizd/clinishare/backend/internal/service"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing; larger
// files spill to disk.
const maxUploadMemory = 32 << 20

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger      *slog.Logger
	auth        *service.AuthService
	profiles    *service.ProfileService
	submissions *service.SubmissionService
	reviews     *service.ReviewService
	rewards     *service.RewardService
	access      *service.AccessService
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(
	logger *slog.Logger,
	auth *service.AuthService,
	profiles *service.ProfileService,
	submissions *service.SubmissionService,
	reviews *service.ReviewService,
	rewards *service.RewardService,
	access *service.AccessService,
) *APIHandlers {
	return &APIHandlers{
		logger:      logger,
		auth:        auth,
		profiles:    profiles,
		submissions: submissions,
		reviews:     reviews,
		rewards:     rewards,
		access:      access,
	}
}

// --- Auth ---

func (h *APIHandlers) handleChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload challengeRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	message, err := h.auth.Challenge(r.Context(), payload.Address)
	if err != nil {
		h.writeServiceError(w, err, "issue challenge")
		return
	}
	respondJSON(w, http.StatusOK, challengeResponse{Message: message})
}

func (h *APIHandlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload loginRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, profile, err := h.auth.Login(r.Context(), payload.Address, payload.PublicKey, payload.Signature)
	if err != nil {
		h.writeServiceError(w, err, "login")
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{Token: token, Profile: profile})
}

// --- Profile ---

func (h *APIHandlers) handleProfile(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		profile, err := h.profiles.Get(r.Context(), session.Address)
		if err != nil {
			h.writeServiceError(w, err, "fetch profile")
			return
		}
		respondJSON(w, http.StatusOK, profile)
	case http.MethodPut:
		var payload profileRequest
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		profile, err := h.profiles.Update(r.Context(), session, service.ProfileInput{
			Name:  payload.Name,
			Email: payload.Email,
			Bio:   payload.Bio,
		})
		if err != nil {
			h.writeServiceError(w, err, "update profile")
			return
		}
		respondJSON(w, http.StatusOK, profile)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

// --- Verifications ---

func (h *APIHandlers) handleVerifications(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session required")
		return
	}

	switch r.Method {
	case http.MethodPost:
		var payload verificationRequest
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req, err := h.submissions.SubmitVerification(r.Context(), session, service.VerificationInput{
			Role:              domain.Role(payload.Role),
			NMRNumber:         payload.NMRNumber,
			UIDNumber:         payload.UIDNumber,
			Specialization:    payload.Specialization,
			Institution:       payload.Institution,
			YearsExperience:   payload.YearsExperience,
			LicenseNumber:     payload.LicenseNumber,
			AdditionalDetails: payload.AdditionalDetails,
		})
		if err != nil {
			h.writeServiceError(w, err, "submit verification")
			return
		}
		respondJSON(w, http.StatusCreated, req)
	case http.MethodGet:
		reqs, err := h.reviews.PendingVerifications(r.Context(), session, domain.SubmissionStatus(r.URL.Query().Get("status")))
		if err != nil {
			h.writeServiceError(w, err, "list verifications")
			return
		}
		if reqs == nil {
			reqs = []domain.VerificationRequest{}
		}
		respondJSON(w, http.StatusOK, reqs)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) handleVerificationByAddress(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session required")
		return
	}

	address, isReview := splitReviewPath(r.URL.Path, "/verifications/")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	switch {
	case isReview && r.Method == http.MethodPost:
		payload, err := decodeReview(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req, err := h.reviews.ReviewVerification(r.Context(), session, address, payload.Approve, payload.Notes)
		if err != nil {
			h.writeServiceError(w, err, "review verification")
			return
		}
		respondJSON(w, http.StatusOK, req)
	case !isReview && r.Method == http.MethodGet:
		req, err := h.reviews.Verification(r.Context(), session, address)
		if err != nil {
			h.writeServiceError(w, err, "fetch verification")
			return
		}
		respondJSON(w, http.StatusOK, req)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// --- Patients ---

func (h *APIHandlers) handlePatients(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session required")
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.uploadPatientRecord(w, r, session)
	case http.MethodGet:
		recs, err := h.reviews.PatientRecords(r.Context(), session, domain.PatientStatus(r.URL.Query().Get("status")))
		if err != nil {
			h.writeServiceError(w, err, "list patient records")
			return
		}
		if recs == nil {
			recs = []domain.PatientRecord{}
		}
		respondJSON(w, http.StatusOK, recs)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) uploadPatientRecord(w http.ResponseWriter, r *http.Request, session service.Session) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	input := service.PatientUploadInput{
		Age:               parseInt(r.FormValue("age"), 0),
		CaseDetectionDate: r.FormValue("caseDetectionDate"),
		AdditionalNotes:   r.FormValue("additionalNotes"),
	}

	prescription, closePrescription, err := formFile(r, "prescription")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if prescription != nil {
		defer closePrescription()
		input.Prescription = prescription
	}

	mri, closeMRI, err := formFile(r, "mri")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if mri != nil {
		defer closeMRI()
		input.MRI = mri
	}

	xray, closeXRay, err := formFile(r, "xray")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if xray != nil {
		defer closeXRay()
		input.XRay = xray
	}

	rec, err := h.submissions.UploadPatientRecord(r.Context(), session, input)
	if err != nil {
		h.writeServiceError(w, err, "upload patient record")
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (h *APIHandlers) handlePatientByAddress(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session required")
		return
	}

	address, isReview := splitReviewPath(r.URL.Path, "/patients/")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	switch {
	case isReview && r.Method == http.MethodPost:
		payload, err := decodeReview(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rec, err := h.reviews.ReviewPatientRecord(r.Context(), session, address, payload.Approve, payload.Notes)
		if err != nil {
			h.writeServiceError(w, err, "review patient record")
			return
		}
		respondJSON(w, http.StatusOK, rec)
	case !isReview && r.Method == http.MethodGet:
		rec, err := h.reviews.PatientRecord(r.Context(), session, address)
		if err != nil {
			h.writeServiceError(w, err, "fetch patient record")
			return
		}
		// Third-party reads land in the audit trail.
		if !strings.EqualFold(session.Address, address) {
			if _, err := h.access.LogAccess(r.Context(), session, address, domain.AccessView, ""); err != nil {
				h.logger.Warn("record view access", "patient", address, "error", err)
			}
		}
		respondJSON(w, http.StatusOK, rec)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// --- Research ---

func (h *APIHandlers) handleResearch(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session required")
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.submitResearch(w, r, session)
	case http.MethodGet:
		if r.URL.Query().Get("mine") == "true" {
			subs, err := h.submissions.MyResearch(r.Context(), session)
			if err != nil {
				h.writeServiceError(w, err, "list own research")
				return
			}
			if subs == nil {
				subs = []domain.ResearchSubmission{}
			}
			respondJSON(w, http.StatusOK, subs)
			return
		}
		subs, err := h.reviews.ResearchSubmissions(r.Context(), session, domain.SubmissionStatus(r.URL.Query().Get("status")))
		if err != nil {
			h.writeServiceError(w, err, "list research")
			return
		}
		if subs == nil {
			subs = []domain.ResearchSubmission{}
		}
		respondJSON(w, http.StatusOK, subs)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) submitResearch(w http.ResponseWriter, r *http.Request, session service.Session) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	input := service.ResearchInput{
		Title:             r.FormValue("title"),
		DiseaseFocus:      r.FormValue("diseaseFocus"),
		Abstract:          r.FormValue("abstract"),
		Methodology:       r.FormValue("methodology"),
		Findings:          r.FormValue("findings"),
		Conclusions:       r.FormValue("conclusions"),
		PublicationStatus: domain.PublicationStatus(r.FormValue("publicationStatus")),
	}

	document, closeDocument, err := formFile(r, "document")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if document != nil {
		defer closeDocument()
		input.Document = document
	}

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["supportingFiles"] {
			file, closeFile, err := openFileHeader(header)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			defer closeFile()
			input.SupportingFiles = append(input.SupportingFiles, *file)
		}
	}

	sub, err := h.submissions.SubmitResearch(r.Context(), session, input)
	if err != nil {
		h.writeServiceError(w, err, "submit research")
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

func (h *APIHandlers) handleResearchByID(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session required")
		return
	}

	id, isReview := splitReviewPath(r.URL.Path, "/research/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "submission ID is required")
		return
	}

	switch {
	case isReview && r.Method == http.MethodPost:
		payload, err := decodeReview(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sub, err := h.reviews.ReviewResearch(r.Context(), session, id, payload.Approve, payload.Notes)
		if err != nil {
			h.writeServiceError(w, err, "review research")
			return
		}
		respondJSON(w, http.StatusOK, sub)
	case !isReview && r.Method == http.MethodGet:
		sub, err := h.reviews.Research(r.Context(), session, id)
		if err != nil {
			h.writeServiceError(w, err, "fetch research")
			return
		}
		respondJSON(w, http.StatusOK, sub)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// --- Rewards & wallet ---

func (h *APIHandlers) handleRewards(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session required")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	summary, err := h.rewards.UserRewards(r.Context(), session.Address)
	if err != nil {
		h.writeServiceError(w, err, "fetch rewards")
		return
	}
	if summary.Records == nil {
		summary.Records = []domain.RewardRecord{}
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *APIHandlers) handleRewardStats(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session required")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if !h.reviews.IsAdmin(session) {
		writeError(w, http.StatusForbidden, "admin access required")
		return
	}

	stats, err := h.rewards.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "fetch reward stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *APIHandlers) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session required")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	address := r.URL.Query().Get("address")
	if address == "" {
		address = session.Address
	}
	balance, err := h.rewards.Balance(r.Context(), address)
	if err != nil {
		h.writeServiceError(w, err, "fetch balance")
		return
	}
	respondJSON(w, http.StatusOK, balanceResponse{
		Address: strings.ToLower(address),
		Octas:   uint64(balance),
		APT:     balance.APT(),
	})
}

// --- Consents & access logs ---

func (h *APIHandlers) handleConsents(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		grants, err := h.access.ConsentedInstitutions(r.Context(), session.Address)
		if err != nil {
			h.writeServiceError(w, err, "list consents")
			return
		}
		respondJSON(w, http.StatusOK, grants)
	case http.MethodPost:
		var payload consentRequest
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.access.GrantConsent(r.Context(), session, payload.Institution); err != nil {
			h.writeServiceError(w, err, "grant consent")
			return
		}
		respondJSON(w, http.StatusCreated, statusResponse{Status: "ok", ID: payload.Institution})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) handleConsentByInstitution(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session required")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}

	institution := strings.Trim(strings.TrimPrefix(r.URL.Path, "/consents/"), "/")
	if institution == "" {
		writeError(w, http.StatusBadRequest, "institution is required")
		return
	}

	if err := h.access.RevokeConsent(r.Context(), session, institution); err != nil {
		h.writeServiceError(w, err, "revoke consent")
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: "ok", ID: institution})
}

func (h *APIHandlers) handleAccessLogs(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session required")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload accessLogRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	action := domain.AccessAction(payload.Action)
	if action == "" {
		action = domain.AccessLog
	}
	entry, err := h.access.LogAccess(r.Context(), session, payload.Patient, action, payload.Institution)
	if err != nil {
		h.writeServiceError(w, err, "log access")
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

func (h *APIHandlers) handleAccessLogsByPatient(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session required")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	patient := strings.Trim(strings.TrimPrefix(r.URL.Path, "/access-logs/"), "/")
	if patient == "" {
		writeError(w, http.StatusBadRequest, "patient address is required")
		return
	}
	if !strings.EqualFold(session.Address, patient) && !h.reviews.CanReviewPatients(r.Context(), session) {
		writeError(w, http.StatusForbidden, "not allowed to read this audit trail")
		return
	}

	entries, err := h.access.AuditTrail(r.Context(), patient)
	if err != nil {
		h.writeServiceError(w, err, "fetch audit trail")
		return
	}
	if entries == nil {
		entries = []domain.AccessLogEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// --- Request & Response DTOs ---

type challengeRequest struct {
	Address string `json:"address"`
}

type challengeResponse struct {
	Message string `json:"message"`
}

type loginRequest struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type loginResponse struct {
	Token   string             `json:"token"`
	Profile domain.UserProfile `json:"profile"`
}

type profileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Bio   string `json:"bio"`
}

type verificationRequest struct {
	Role              string `json:"role"`
	NMRNumber         string `json:"nmrNumber"`
	UIDNumber         string `json:"uidNumber"`
	Specialization    string `json:"specialization"`
	Institution       string `json:"institution"`
	YearsExperience   int    `json:"yearsExperience"`
	LicenseNumber     string `json:"licenseNumber"`
	AdditionalDetails string `json:"additionalCredentials"`
}

type reviewRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

type consentRequest struct {
	Institution string `json:"institution"`
}

type accessLogRequest struct {
	Patient     string `json:"patient"`
	Action      string `json:"action"`
	Institution string `json:"institution"`
}

type balanceResponse struct {
	Address string  `json:"address"`
	Octas   uint64  `json:"octas"`
	APT     float64 `json:"apt"`
}

type statusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// --- Helpers ---

// splitReviewPath extracts the identifier from paths of the form
// /prefix/{id} and /prefix/{id}/review.
func splitReviewPath(path, prefix string) (string, bool) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if id, found := strings.CutSuffix(rest, "/review"); found {
		return strings.Trim(id, "/"), true
	}
	return rest, false
}

func decodeReview(r *http.Request) (reviewRequest, error) {
	var payload reviewRequest
	if err := decodeJSON(r, &payload); err != nil {
		return reviewRequest{}, err
	}
	return payload, nil
}

// formFile opens an optional multipart file. A missing file yields nil
// without an error.
func formFile(r *http.Request, field string) (*service.FileInput, func(), error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &service.FileInput{
			Name:    header.Filename,
			Size:    header.Size,
			Content: file,
		}, func() {
			_ = file.Close()
		}, nil
}

func openFileHeader(header *multipart.FileHeader) (*service.FileInput, func(), error) {
	file, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	return &service.FileInput{
			Name:    header.Filename,
			Size:    header.Size,
			Content: file,
		}, func() {
			_ = file.Close()
		}, nil
}

// writeServiceError maps service errors onto HTTP statuses.
func (h *APIHandlers) writeServiceError(w http.ResponseWriter, err error, action string) {
	var tooLarge *pin.TooLargeError
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrNotesRequired),
		errors.Is(err, pin.ErrEmptyFile), errors.Is(err, pin.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "not authorized")
	case errors.Is(err, service.ErrChallengeNotFound), errors.Is(err, service.ErrBadSignature),
		errors.Is(err, service.ErrKeyMismatch), errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, docstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, docstore.ErrAlreadyReviewed), errors.Is(err, docstore.ErrDuplicateReward):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed", "action", action, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	var n int
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return fallback
		}
		n = n*10 + int(ch-'0')
	}
	return n
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
