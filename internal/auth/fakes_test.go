package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/account/entity"
	accountrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/account/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/otp"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
)

// fakeStore keeps accounts in memory and hands out copies, like a database would.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]entity.Account
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: map[string]entity.Account{}}
}

func (f *fakeStore) find(match func(entity.Account) bool) (*entity.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, a := range f.accounts {
		if match(a) {
			cp := a
			return &cp, nil
		}
	}
	return nil, accountrepo.ErrNotFound
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (*entity.Account, error) {
	return f.find(func(a entity.Account) bool { return a.Email == email })
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*entity.Account, error) {
	return f.find(func(a entity.Account) bool { return a.ID == id })
}

func (f *fakeStore) GetByFederatedID(_ context.Context, fid string) (*entity.Account, error) {
	return f.find(func(a entity.Account) bool { return a.FederatedID != nil && *a.FederatedID == fid })
}

func (f *fakeStore) Create(_ context.Context, a *entity.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.accounts {
		if existing.Email == a.Email {
			return accountrepo.ErrDuplicate
		}
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	f.accounts[a.ID] = *a
	return nil
}

func (f *fakeStore) Update(_ context.Context, a *entity.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[a.ID]; !ok {
		return accountrepo.ErrNotFound
	}
	f.accounts[a.ID] = *a
	return nil
}

func (f *fakeStore) SetOTP(_ context.Context, id, code string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return accountrepo.ErrNotFound
	}
	a.OTPCode, a.OTPExpiresAt = &code, &exp
	f.accounts[id] = a
	return nil
}

func (f *fakeStore) ClearOTP(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return accountrepo.ErrNotFound
	}
	a.OTPCode, a.OTPExpiresAt = nil, nil
	f.accounts[id] = a
	return nil
}

func (f *fakeStore) get(t *testing.T, email string) entity.Account {
	t.Helper()
	a, err := f.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return *a
}

// fakeNotifier records the last code per address.
type fakeNotifier struct {
	mu       sync.Mutex
	codes    map[string]string
	welcomed []string
	fail     bool
}

func (n *fakeNotifier) SendOTP(_ context.Context, email, code string, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("mail server down")
	}
	n.codes[email] = code
	return nil
}

func (n *fakeNotifier) SendWelcome(_ context.Context, email, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomed = append(n.welcomed, email)
	return nil
}

func (n *fakeNotifier) code(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[email]
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("acc-%d", s.n)
}

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	store    *fakeStore
	notifier *fakeNotifier
	tokens   *token.Service
	clock    *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	store := newFakeStore()
	notifier := &fakeNotifier{codes: map[string]string{}}
	tokens, err := token.NewService(token.Config{Secret: "test-secret-test-secret", Issuer: "test", TTL: 7 * 24 * time.Hour}, clock)
	require.NoError(t, err)

	svc := NewService(Deps{
		Store:    store,
		OTP:      otp.NewIssuer(store, otp.BcryptHasher{Cost: bcrypt.MinCost}, clock),
		Notifier: notifier,
		Tokens:   tokens,
		IDs:      &seqIDs{},
		Clock:    clock,
	})
	return &fixture{svc: svc, store: store, notifier: notifier, tokens: tokens, clock: clock}
}
