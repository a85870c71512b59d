package service

import (
	"context"
	"fmt"
	"time"

	"github.com/srizd/clinishare/backend/internal/docstore"
	"github.com/srizd/clinishare/backend/internal/domain"
)

// ProfileService reads and updates user profiles.
type ProfileService struct {
	store docstore.Store
	nowFn func() time.Time
}

// NewProfileService constructs a ProfileService.
func NewProfileService(store docstore.Store) *ProfileService {
	return &ProfileService{store: store, nowFn: time.Now}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *ProfileService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Get returns the profile for the given address.
func (s *ProfileService) Get(ctx context.Context, address string) (domain.UserProfile, error) {
	return s.store.GetProfile(ctx, normalizeWalletAddress(address))
}

// Update applies the mutable profile fields for the session's own profile.
func (s *ProfileService) Update(ctx context.Context, session Session, input ProfileInput) (domain.UserProfile, error) {
	address := normalizeWalletAddress(session.Address)

	profile, err := s.store.GetProfile(ctx, address)
	if err != nil {
		return domain.UserProfile{}, err
	}

	if name := sanitizeString(input.Name); name != "" {
		profile.Name = name
	}
	if email := normalizeEmail(input.Email); email != "" {
		profile.Email = email
	}
	if bio := sanitizeString(input.Bio); bio != "" {
		profile.Bio = bio
	}
	profile.UpdatedAt = s.nowFn().UTC()

	if err := s.store.PutProfile(ctx, profile); err != nil {
		return domain.UserProfile{}, err
	}
	return profile, nil
}

// VerificationStatus returns the profile's verification request, if any.
func (s *ProfileService) VerificationStatus(ctx context.Context, address string) (domain.VerificationRequest, error) {
	req, err := s.store.GetVerification(ctx, normalizeWalletAddress(address))
	if err != nil {
		return domain.VerificationRequest{}, fmt.Errorf("verification status: %w", err)
	}
	return req, nil
}
