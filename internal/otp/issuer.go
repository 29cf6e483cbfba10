// Package otp issues and checks six digit one-time passcodes stored on accounts.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/account/entity"
)

const (
	TTL     = 5 * time.Minute
	minCode = 100000
	maxCode = 999999
)

var codeFormat = regexp.MustCompile(`^\d{6}$`)

// ValidFormat reports whether candidate is exactly six ASCII digits.
func ValidFormat(candidate string) bool {
	return codeFormat.MatchString(candidate)
}

// Store persists the code columns of one account atomically.
type Store interface {
	SetOTP(ctx context.Context, accountID, code string, expiresAt time.Time) error
	ClearOTP(ctx context.Context, accountID string) error
}

// CodeHasher keeps codes unreadable at rest.
type CodeHasher interface {
	Hash(code string) (string, error)
	Verify(hash, code string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(code string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

type Issuer struct {
	store  Store
	hasher CodeHasher
	clock  clockwork.Clock
}

// NewIssuer wires an issuer. A nil hasher defaults to bcrypt, a nil clock to the real clock.
func NewIssuer(store Store, hasher CodeHasher, clock clockwork.Clock) *Issuer {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Issuer{store: store, hasher: hasher, clock: clock}
}

// Issue generates a fresh code, persists its hash with a five minute expiry
// and returns the plain code for delivery. Any pending code is replaced.
func (i *Issuer) Issue(ctx context.Context, a *entity.Account) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxCode-minCode+1))
	if err != nil {
		return "", fmt.Errorf("otp random: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64()+minCode)

	hash, err := i.hasher.Hash(code)
	if err != nil {
		return "", fmt.Errorf("otp hash: %w", err)
	}
	expiresAt := i.clock.Now().Add(TTL)
	if err := i.store.SetOTP(ctx, a.ID, hash, expiresAt); err != nil {
		return "", fmt.Errorf("otp store: %w", err)
	}
	a.OTPCode = &hash
	a.OTPExpiresAt = &expiresAt
	return code, nil
}

// IsValid is true only for the issued code strictly before its expiry.
// Wrong and expired codes are indistinguishable to the caller.
func (i *Issuer) IsValid(a *entity.Account, candidate string) bool {
	if !a.HasPendingOTP() || !ValidFormat(candidate) {
		return false
	}
	if !i.clock.Now().Before(*a.OTPExpiresAt) {
		return false
	}
	return i.hasher.Verify(*a.OTPCode, candidate)
}

// Clear unsets the code and expiry. Calling it again is a no-op.
func (i *Issuer) Clear(ctx context.Context, a *entity.Account) error {
	if err := i.store.ClearOTP(ctx, a.ID); err != nil {
		return fmt.Errorf("otp clear: %w", err)
	}
	a.OTPCode = nil
	a.OTPExpiresAt = nil
	return nil
}

