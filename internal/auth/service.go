// Package auth implements passcode signup and login, Google login, and the
// HTTP endpoints that expose them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/account/entity"
	accountrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/account/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/otp"
)

// AccountStore is the persistence the auth flows need.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*entity.Account, error)
	GetByID(ctx context.Context, id string) (*entity.Account, error)
	GetByFederatedID(ctx context.Context, federatedID string) (*entity.Account, error)
	Create(ctx context.Context, a *entity.Account) error
	Update(ctx context.Context, a *entity.Account) error
}

// Notifier delivers account emails.
type Notifier interface {
	SendOTP(ctx context.Context, email, code string, ttl time.Duration) error
	SendWelcome(ctx context.Context, email, firstName string) error
}

// Tokens mints session tokens.
type Tokens interface {
	Issue(accountID string) (string, time.Time, error)
}

type IDGenerator interface {
	Next() string
}

// Deps groups the collaborators of Service.
type Deps struct {
	Store    AccountStore
	OTP      *otp.Issuer
	Notifier Notifier
	Tokens   Tokens
	IDs      IDGenerator
	Clock    clockwork.Clock
	Logger   *zap.SugaredLogger
}

// Service orchestrates the passcode and federated login flows.
type Service struct {
	store    AccountStore
	otp      *otp.Issuer
	notifier Notifier
	tokens   Tokens
	ids      IDGenerator
	clock    clockwork.Clock
	logger   *zap.SugaredLogger

	// background sends (welcome email)
	bg sync.WaitGroup
}

func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}
	return &Service{
		store:    d.Store,
		otp:      d.OTP,
		notifier: d.Notifier,
		tokens:   d.Tokens,
		ids:      d.IDs,
		clock:    d.Clock,
		logger:   d.Logger,
	}
}

// VerifyRequest is the verify-otp input. Supplying all of FirstName, LastName
// and DOB completes signup.
type VerifyRequest struct {
	Email     string
	OTP       string
	FirstName string
	LastName  string
	DOB       string
}

type VerifyResult struct {
	SignedUp bool
}

// Session is a minted token with the profile it belongs to.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Profile   entity.Profile
}

// SendOTP finds or creates the account for email, stores a fresh code and
// delivers it. The code stays stored when delivery fails.
func (s *Service) SendOTP(ctx context.Context, email string) (string, error) {
	email = entity.NormalizeEmail(email)
	if email == "" || !entity.ValidEmail(email) {
		return "", invalid("email", "Please provide a valid email address")
	}

	a, err := s.findOrCreatePending(ctx, email)
	if err != nil {
		return "", err
	}

	code, err := s.otp.Issue(ctx, a)
	if err != nil {
		return "", err
	}

	if err := s.notifier.SendOTP(ctx, email, code, otp.TTL); err != nil {
		s.logger.Errorw("otp delivery failed", "account_id", a.ID, "err", err)
		return email, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return email, nil
}

func (s *Service) findOrCreatePending(ctx context.Context, email string) (*entity.Account, error) {
	a, err := s.store.GetByEmail(ctx, email)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, accountrepo.ErrNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	a = &entity.Account{ID: s.ids.Next(), Email: email}
	if err := a.Validate(s.clock.Now()); err != nil {
		return nil, err
	}
	err = s.store.Create(ctx, a)
	if errors.Is(err, accountrepo.ErrDuplicate) {
		// lost a race with a concurrent request for the same email
		return s.store.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.logger.Infow("pending account created", "account_id", a.ID)
	return a, nil
}

// credentials normalizes and checks an email and code pair.
func credentials(email, code string) (string, string, error) {
	email = entity.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return "", "", invalid("otp", "Email and OTP are required")
	}
	if !otp.ValidFormat(code) {
		return "", "", invalid("otp", "Invalid OTP format")
	}
	return email, code, nil
}

func (s *Service) lookup(ctx context.Context, email string) (*entity.Account, error) {
	a, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, accountrepo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	return a, nil
}

// VerifyOTP checks a code. With signup details it completes registration;
// without them it only consumes the code. Invalid details leave the code usable.
func (s *Service) VerifyOTP(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	email, code, err := credentials(req.Email, req.OTP)
	if err != nil {
		return VerifyResult{}, err
	}
	a, err := s.lookup(ctx, email)
	if err != nil {
		return VerifyResult{}, err
	}
	if !s.otp.IsValid(a, code) {
		return VerifyResult{}, ErrInvalidOTP
	}

	first, last, dob := entity.Sanitize(req.FirstName), entity.Sanitize(req.LastName), strings.TrimSpace(req.DOB)
	if first == "" || last == "" || dob == "" {
		if err := s.otp.Clear(ctx, a); err != nil {
			return VerifyResult{}, err
		}
		return VerifyResult{}, nil
	}

	if !entity.ValidName(first) || !entity.ValidName(last) {
		return VerifyResult{}, invalid("name", "Please provide valid first name and last name")
	}
	birth, err := entity.ParseBirthDate(dob)
	if err != nil || !entity.ValidBirthDate(birth, s.clock.Now()) {
		return VerifyResult{}, invalid("dob", "Please provide a valid date of birth (minimum age: 13)")
	}

	a.FirstName = &first
	a.LastName = &last
	a.DateOfBirth = &birth
	a.IsVerified = true
	a.OTPCode = nil
	a.OTPExpiresAt = nil
	if err := a.Validate(s.clock.Now()); err != nil {
		return VerifyResult{}, err
	}
	if err := s.store.Update(ctx, a); err != nil {
		return VerifyResult{}, fmt.Errorf("complete signup: %w", err)
	}
	s.logger.Infow("signup completed", "account_id", a.ID)
	s.welcome(a.Email, first)
	return VerifyResult{SignedUp: true}, nil
}

// welcome sends a best-effort greeting without holding up the request.
func (s *Service) welcome(email, firstName string) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.notifier.SendWelcome(ctx, email, firstName); err != nil {
			s.logger.Warnw("welcome email failed", "err", err)
		}
	}()
}

// Wait blocks until background sends finish.
func (s *Service) Wait() {
	s.bg.Wait()
}

// Login consumes a valid code of a verified account and mints a session.
func (s *Service) Login(ctx context.Context, email, code string) (*Session, error) {
	email, code, err := credentials(email, code)
	if err != nil {
		return nil, err
	}
	a, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if !a.IsVerified {
		return nil, ErrNotVerified
	}
	if !s.otp.IsValid(a, code) {
		return nil, ErrInvalidOTP
	}
	if err := s.otp.Clear(ctx, a); err != nil {
		return nil, err
	}
	return s.session(a)
}

func (s *Service) session(a *entity.Account) (*Session, error) {
	tok, exp, err := s.tokens.Issue(a.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, ExpiresAt: exp, Profile: a.Profile()}, nil
}

// Account loads the account behind a verified token.
func (s *Service) Account(ctx context.Context, id string) (*entity.Account, error) {
	a, err := s.store.GetByID(ctx, id)
	if errors.Is(err, accountrepo.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	return a, nil
}
