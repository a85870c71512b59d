package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/sha3"

	"github.com/srizd/clinishare/backend/internal/docstore"
	"github.com/srizd/clinishare/backend/internal/domain"
)

const (
	challengePrefix = "Sign this message to authenticate with CliniShare: "
	challengeTTL    = 5 * time.Minute
)

var (
	// ErrChallengeNotFound indicates no live challenge exists for the
	// address.
	ErrChallengeNotFound = errors.New("no active challenge for address")
	// ErrBadSignature indicates the signature does not verify against the
	// challenge.
	ErrBadSignature = errors.New("signature verification failed")
	// ErrKeyMismatch indicates the public key does not derive the claimed
	// address.
	ErrKeyMismatch = errors.New("public key does not match address")
	// ErrInvalidToken indicates a session token failed validation.
	ErrInvalidToken = errors.New("invalid session token")
)

type challenge struct {
	message   string
	expiresAt time.Time
}

// AuthService issues wallet sessions. A caller requests a one-time
// challenge, signs it with the wallet's ed25519 key, and exchanges the
// signature for a JWT. Challenges are single use and expire quickly.
type AuthService struct {
	store  docstore.Store
	secret []byte
	ttl    time.Duration
	nowFn  func() time.Time

	mu         sync.Mutex
	challenges map[string]challenge
}

// NewAuthService constructs an AuthService.
func NewAuthService(store docstore.Store, jwtSecret string, sessionTTL time.Duration) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = 72 * time.Hour
	}
	return &AuthService{
		store:      store,
		secret:     []byte(jwtSecret),
		ttl:        sessionTTL,
		nowFn:      time.Now,
		challenges: make(map[string]challenge),
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *AuthService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Challenge issues a fresh signing challenge for the address, replacing any
// previous one.
func (s *AuthService) Challenge(_ context.Context, address string) (string, error) {
	address = normalizeWalletAddress(address)
	if !validWalletAddress(address) {
		return "", fmt.Errorf("%w: malformed wallet address", ErrValidation)
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	message := challengePrefix + hex.EncodeToString(nonce)

	s.mu.Lock()
	s.challenges[address] = challenge{
		message:   message,
		expiresAt: s.nowFn().Add(challengeTTL),
	}
	s.mu.Unlock()

	return message, nil
}

// Login verifies the signed challenge and issues a session token. The
// profile is created on first login.
func (s *AuthService) Login(ctx context.Context, address, publicKeyHex, signatureHex string) (string, domain.UserProfile, error) {
	address = normalizeWalletAddress(address)

	s.mu.Lock()
	ch, ok := s.challenges[address]
	delete(s.challenges, address)
	s.mu.Unlock()

	if !ok || s.nowFn().After(ch.expiresAt) {
		return "", domain.UserProfile{}, ErrChallengeNotFound
	}

	publicKey, err := hex.DecodeString(strings.TrimPrefix(publicKeyHex, "0x"))
	if err != nil || len(publicKey) != ed25519.PublicKeySize {
		return "", domain.UserProfile{}, fmt.Errorf("%w: malformed public key", ErrValidation)
	}
	if authKeyAddress(publicKey) != address {
		return "", domain.UserProfile{}, ErrKeyMismatch
	}

	signature, err := hex.DecodeString(strings.TrimPrefix(signatureHex, "0x"))
	if err != nil || len(signature) != ed25519.SignatureSize {
		return "", domain.UserProfile{}, fmt.Errorf("%w: malformed signature", ErrValidation)
	}
	if !ed25519.Verify(publicKey, []byte(ch.message), signature) {
		return "", domain.UserProfile{}, ErrBadSignature
	}

	now := s.nowFn().UTC()
	profile, _, err := s.store.EnsureProfile(ctx, address, now)
	if err != nil {
		return "", domain.UserProfile{}, err
	}

	claims := jwt.RegisteredClaims{
		Subject:   address,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", domain.UserProfile{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, profile, nil
}

// Authenticate validates a session token and resolves the current session.
// The role is read from the profile on every request so a verification
// approved mid-session takes effect immediately.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Session, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.nowFn))
	if err != nil || !parsed.Valid {
		return Session{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return Session{}, ErrInvalidToken
	}

	session := Session{Address: claims.Subject, Role: domain.RoleExplorer}
	profile, err := s.store.GetProfile(ctx, claims.Subject)
	if err == nil {
		session.Role = profile.Role
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return Session{}, err
	}
	return session, nil
}

// authKeyAddress derives the account address for a single ed25519 key.
func authKeyAddress(publicKey ed25519.PublicKey) string {
	hasher := sha3.New256()
	hasher.Write(publicKey)
	hasher.Write([]byte{0x00})
	return "0x" + hex.EncodeToString(hasher.Sum(nil))
}
