package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/srizd/clinishare/backend/internal/docstore"
	"github.com/srizd/clinishare/backend/internal/domain"
)

type testWallet struct {
	address   string
	publicKey ed25519.PublicKey
	private   ed25519.PrivateKey
}

func newTestWallet(t *testing.T) testWallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return testWallet{
		address:   authKeyAddress(pub),
		publicKey: pub,
		private:   priv,
	}
}

func (w testWallet) sign(message string) string {
	return hex.EncodeToString(ed25519.Sign(w.private, []byte(message)))
}

func newAuthFixture(t *testing.T) (*docstore.MemoryStore, *AuthService) {
	t.Helper()
	store := docstore.NewMemoryStore()
	auth := NewAuthService(store, "test-secret", time.Hour)
	auth.WithClock(testClock)
	return store, auth
}

func TestLoginRoundTrip(t *testing.T) {
	store, auth := newAuthFixture(t)
	wallet := newTestWallet(t)
	ctx := context.Background()

	message, err := auth.Challenge(ctx, wallet.address)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if !strings.HasPrefix(message, "Sign this message to authenticate with CliniShare: ") {
		t.Fatalf("unexpected challenge message %q", message)
	}

	token, profile, err := auth.Login(ctx, wallet.address, hex.EncodeToString(wallet.publicKey), wallet.sign(message))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" {
		t.Fatal("expected a session token")
	}
	if profile.Address != wallet.address {
		t.Fatalf("expected profile for %s, got %s", wallet.address, profile.Address)
	}
	if profile.Role != domain.RoleExplorer {
		t.Fatalf("expected first login to create Explorer profile, got %s", profile.Role)
	}

	session, err := auth.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if session.Address != wallet.address {
		t.Fatalf("expected session address %s, got %s", wallet.address, session.Address)
	}

	// Role changes take effect on the next request.
	if err := store.UpdateProfileVerification(ctx, wallet.address, domain.RoleDoctor, domain.VerificationApproved, testClock()); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	session, err = auth.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate after role change: %v", err)
	}
	if session.Role != domain.RoleDoctor {
		t.Fatalf("expected refreshed role Doctor, got %s", session.Role)
	}
}

func TestLoginChallengeIsSingleUse(t *testing.T) {
	_, auth := newAuthFixture(t)
	wallet := newTestWallet(t)
	ctx := context.Background()

	message, err := auth.Challenge(ctx, wallet.address)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	signature := wallet.sign(message)
	pubHex := hex.EncodeToString(wallet.publicKey)

	if _, _, err := auth.Login(ctx, wallet.address, pubHex, signature); err != nil {
		t.Fatalf("first login: %v", err)
	}
	if _, _, err := auth.Login(ctx, wallet.address, pubHex, signature); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound on replay, got %v", err)
	}
}

func TestLoginExpiredChallenge(t *testing.T) {
	_, auth := newAuthFixture(t)
	wallet := newTestWallet(t)
	ctx := context.Background()

	message, err := auth.Challenge(ctx, wallet.address)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}

	auth.WithClock(func() time.Time { return testClock().Add(6 * time.Minute) })

	if _, _, err := auth.Login(ctx, wallet.address, hex.EncodeToString(wallet.publicKey), wallet.sign(message)); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound for expired challenge, got %v", err)
	}
}

func TestLoginRejectsForeignKey(t *testing.T) {
	_, auth := newAuthFixture(t)
	wallet := newTestWallet(t)
	imposter := newTestWallet(t)
	ctx := context.Background()

	message, err := auth.Challenge(ctx, wallet.address)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}

	// The imposter's key signs correctly but does not derive the claimed
	// address.
	if _, _, err := auth.Login(ctx, wallet.address, hex.EncodeToString(imposter.publicKey), imposter.sign(message)); !errors.Is(err, ErrKeyMismatch) {
		t.Fatalf("expected ErrKeyMismatch, got %v", err)
	}
}

func TestLoginRejectsBadSignature(t *testing.T) {
	_, auth := newAuthFixture(t)
	wallet := newTestWallet(t)
	ctx := context.Background()

	if _, err := auth.Challenge(ctx, wallet.address); err != nil {
		t.Fatalf("challenge: %v", err)
	}

	if _, _, err := auth.Login(ctx, wallet.address, hex.EncodeToString(wallet.publicKey), wallet.sign("some other message")); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	_, auth := newAuthFixture(t)
	wallet := newTestWallet(t)
	ctx := context.Background()

	message, err := auth.Challenge(ctx, wallet.address)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	token, _, err := auth.Login(ctx, wallet.address, hex.EncodeToString(wallet.publicKey), wallet.sign(message))
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	auth.WithClock(func() time.Time { return testClock().Add(2 * time.Hour) })

	if _, err := auth.Authenticate(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestChallengeRejectsMalformedAddress(t *testing.T) {
	_, auth := newAuthFixture(t)

	if _, err := auth.Challenge(context.Background(), "not-an-address"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
