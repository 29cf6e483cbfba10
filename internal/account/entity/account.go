package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Account represents a row in the `accounts` table.
type Account struct {
	ID                string     `db:"id"`
	Email             string     `db:"email"`
	FirstName         *string    `db:"first_name"`
	LastName          *string    `db:"last_name"`
	DateOfBirth       *time.Time `db:"date_of_birth"`
	FederatedID       *string    `db:"federated_id"`
	OTPCode           *string    `db:"otp_code"`
	OTPExpiresAt      *time.Time `db:"otp_expires_at"`
	IsVerified        bool       `db:"is_verified"`
	ProfilePictureURL *string    `db:"profile_picture_url"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// Profile is the public projection returned to clients.
type Profile struct {
	ID             string     `json:"id"`
	FirstName      *string    `json:"firstName"`
	LastName       *string    `json:"lastName"`
	Email          string     `json:"email"`
	DateOfBirth    *time.Time `json:"dob"`
	ProfilePicture *string    `json:"profilePicture"`
}

func (a *Account) Profile() Profile {
	return Profile{
		ID:             a.ID,
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		Email:          a.Email,
		DateOfBirth:    a.DateOfBirth,
		ProfilePicture: a.ProfilePictureURL,
	}
}

// HasPendingOTP reports whether a code is currently stored.
func (a Account) HasPendingOTP() bool {
	return a.OTPCode != nil && a.OTPExpiresAt != nil
}

// Variant is one of Pending, LocalVerified or FederatedVerified.
type Variant interface {
	variant()
}

// Pending is an account created by an OTP request that has not completed signup.
type Pending struct {
	Email string
}

// LocalVerified completed signup through the OTP flow.
type LocalVerified struct {
	Email       string
	FirstName   string
	LastName    string
	DateOfBirth time.Time
}

// FederatedVerified is linked to an external identity; names and avatar are optional.
type FederatedVerified struct {
	Email       string
	FederatedID string
	FirstName   string
	LastName    string
	AvatarURL   string
}

func (Pending) variant()           {}
func (LocalVerified) variant()     {}
func (FederatedVerified) variant() {}

var ErrInvalid = errors.New("invalid account")

// FieldError names the field that failed validation. It matches ErrInvalid.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Is(target error) bool { return target == ErrInvalid }

func invalid(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// Variant projects the stored record onto the variant it satisfies.
func (a *Account) Variant() (Variant, error) {
	if a.Email == "" {
		return nil, invalid("email", "required")
	}
	if !a.IsVerified {
		return Pending{Email: a.Email}, nil
	}
	if a.FederatedID != nil && *a.FederatedID != "" {
		return FederatedVerified{
			Email:       a.Email,
			FederatedID: *a.FederatedID,
			FirstName:   deref(a.FirstName),
			LastName:    deref(a.LastName),
			AvatarURL:   deref(a.ProfilePictureURL),
		}, nil
	}
	switch {
	case deref(a.FirstName) == "":
		return nil, invalid("firstName", "required for verified accounts")
	case deref(a.LastName) == "":
		return nil, invalid("lastName", "required for verified accounts")
	case a.DateOfBirth == nil:
		return nil, invalid("dob", "required for verified accounts")
	}
	return LocalVerified{
		Email:       a.Email,
		FirstName:   *a.FirstName,
		LastName:    *a.LastName,
		DateOfBirth: *a.DateOfBirth,
	}, nil
}

// Validate checks the record invariants as of now.
func (a *Account) Validate(now time.Time) error {
	if !ValidEmail(a.Email) || a.Email != strings.ToLower(a.Email) {
		return invalid("email", "must be a valid lowercase address")
	}
	if (a.OTPCode == nil) != (a.OTPExpiresAt == nil) {
		return invalid("otp", "code and expiry must be set together")
	}
	v, err := a.Variant()
	if err != nil {
		return err
	}
	if lv, ok := v.(LocalVerified); ok {
		if !ValidName(lv.FirstName) {
			return invalid("firstName", "must be 2-50 characters")
		}
		if !ValidName(lv.LastName) {
			return invalid("lastName", "must be 2-50 characters")
		}
		if !ValidBirthDate(lv.DateOfBirth, now) {
			return invalid("dob", "age must be between 13 and 120")
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
