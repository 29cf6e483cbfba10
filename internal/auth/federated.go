package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/account/entity"
	accountrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/account/repo"
)

// Identity is a profile already verified by an external provider.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Picture       string
}

// FederatedLogin reconciles an external identity with the account store and
// mints the same session as Login. Matching runs by federated id, then by
// email (linking), then creates a new verified account.
func (s *Service) FederatedLogin(ctx context.Context, id Identity) (*Session, error) {
	email := entity.NormalizeEmail(id.Email)
	if id.Subject == "" || !entity.ValidEmail(email) {
		return nil, fmt.Errorf("%w: identity without subject or email", ErrAuthProvider)
	}

	a, err := s.store.GetByFederatedID(ctx, id.Subject)
	switch {
	case err == nil:
		return s.session(a)
	case !errors.Is(err, accountrepo.ErrNotFound):
		return nil, fmt.Errorf("lookup federated account: %w", err)
	}

	// linking by address is only safe when the provider vouches for it
	if !id.EmailVerified {
		return nil, fmt.Errorf("%w: email not verified by provider", ErrAuthProvider)
	}

	a, err = s.store.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.link(ctx, a, id)
	case !errors.Is(err, accountrepo.ErrNotFound):
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	a = &entity.Account{
		ID:          s.ids.Next(),
		Email:       email,
		FederatedID: &id.Subject,
		FirstName:   optional(entity.Sanitize(id.GivenName)),
		LastName:    optional(entity.Sanitize(id.FamilyName)),
		IsVerified:  true,
	}
	a.ProfilePictureURL = optional(id.Picture)
	if err := a.Validate(s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create federated account: %w", err)
	}
	s.logger.Infow("federated account created", "account_id", a.ID)
	return s.session(a)
}

func (s *Service) link(ctx context.Context, a *entity.Account, id Identity) (*Session, error) {
	a.FederatedID = &id.Subject
	a.IsVerified = true
	if pic := optional(id.Picture); pic != nil {
		a.ProfilePictureURL = pic
	}
	if err := a.Validate(s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("link federated account: %w", err)
	}
	s.logger.Infow("federated identity linked", "account_id", a.ID)
	return s.session(a)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
