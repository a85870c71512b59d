package service

import (
	"context"
	"errors"

	"github.com/srizd/clinishare/backend/internal/docstore"
)

// ReviewPolicy decides who may resolve submissions. Addresses on the admin
// allow-list may review anything; verified doctors may review patient
// records.
type ReviewPolicy struct {
	store  docstore.Store
	admins map[string]struct{}
}

// NewReviewPolicy builds a policy from the configured admin allow-list.
func NewReviewPolicy(store docstore.Store, adminAddresses []string) *ReviewPolicy {
	admins := make(map[string]struct{}, len(adminAddresses))
	for _, addr := range adminAddresses {
		admins[normalizeWalletAddress(addr)] = struct{}{}
	}
	return &ReviewPolicy{store: store, admins: admins}
}

// IsAdmin reports whether the address is on the admin allow-list.
func (p *ReviewPolicy) IsAdmin(address string) bool {
	_, ok := p.admins[normalizeWalletAddress(address)]
	return ok
}

// AuthorizeAdmin allows only allow-listed addresses.
func (p *ReviewPolicy) AuthorizeAdmin(session Session) error {
	if !p.IsAdmin(session.Address) {
		return ErrNotAuthorized
	}
	return nil
}

// AuthorizePatientReview allows admins and verified doctors.
func (p *ReviewPolicy) AuthorizePatientReview(ctx context.Context, session Session) error {
	if p.IsAdmin(session.Address) {
		return nil
	}

	profile, err := p.store.GetProfile(ctx, normalizeWalletAddress(session.Address))
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotAuthorized
	}
	if err != nil {
		return err
	}
	if !profile.IsVerifiedDoctor() {
		return ErrNotAuthorized
	}
	return nil
}
