package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/account/entity"
)

var (
	// ErrNotFound is returned when no account row matches.
	ErrNotFound = sql.ErrNoRows
	// ErrDuplicate is returned when the email or federated id is already taken.
	ErrDuplicate = errors.New("account already exists")
)

const uniqueViolation = "23505"

const accountColumns = `id, email, first_name, last_name, date_of_birth, federated_id,
	otp_code, otp_expires_at, is_verified, profile_picture_url, created_at, updated_at`

// AccountRepo provides data access for the accounts table using sqlx.
type AccountRepo struct {
	db *sqlx.DB
}

func NewAccountRepo(db *sqlx.DB) *AccountRepo { return &AccountRepo{db: db} }

func (r *AccountRepo) get(ctx context.Context, where string, arg any) (*entity.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where + `=$1`
	var a entity.Account
	if err := r.db.GetContext(ctx, &a, q, arg); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByEmail matches case-insensitively (citext) or returns ErrNotFound.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return r.get(ctx, "email", email)
}

func (r *AccountRepo) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	return r.get(ctx, "id", id)
}

func (r *AccountRepo) GetByFederatedID(ctx context.Context, federatedID string) (*entity.Account, error) {
	return r.get(ctx, "federated_id", federatedID)
}

// Create inserts a new account. The caller assigns ID; timestamps are filled from the row.
func (r *AccountRepo) Create(ctx context.Context, a *entity.Account) error {
	const q = `INSERT INTO accounts (id, email, first_name, last_name, date_of_birth, federated_id,
		otp_code, otp_expires_at, is_verified, profile_picture_url)
		VALUES (:id, :email, :first_name, :last_name, :date_of_birth, :federated_id,
		:otp_code, :otp_expires_at, :is_verified, :profile_picture_url)
		RETURNING created_at, updated_at`
	rows, err := r.db.NamedQueryContext(ctx, q, a)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return mapError(err)
		}
		return errors.New("no row returned")
	}
	return rows.Scan(&a.CreatedAt, &a.UpdatedAt)
}

// Update writes every mutable column of a and refreshes UpdatedAt.
func (r *AccountRepo) Update(ctx context.Context, a *entity.Account) error {
	const q = `UPDATE accounts SET email=$2, first_name=$3, last_name=$4, date_of_birth=$5,
		federated_id=$6, otp_code=$7, otp_expires_at=$8, is_verified=$9, profile_picture_url=$10,
		updated_at=NOW()
		WHERE id=$1 RETURNING updated_at`
	err := r.db.GetContext(ctx, &a.UpdatedAt, q,
		a.ID, a.Email, a.FirstName, a.LastName, a.DateOfBirth,
		a.FederatedID, a.OTPCode, a.OTPExpiresAt, a.IsVerified, a.ProfilePictureURL)
	return mapError(err)
}

// SetOTP stores a code and its expiry in one statement.
func (r *AccountRepo) SetOTP(ctx context.Context, id, code string, expiresAt time.Time) error {
	const q = `UPDATE accounts SET otp_code=$2, otp_expires_at=$3, updated_at=NOW() WHERE id=$1`
	return r.exec(ctx, q, id, code, expiresAt)
}

// ClearOTP unsets code and expiry. Clearing an account without a code is not an error.
func (r *AccountRepo) ClearOTP(ctx context.Context, id string) error {
	const q = `UPDATE accounts SET otp_code=NULL, otp_expires_at=NULL, updated_at=NOW() WHERE id=$1`
	return r.exec(ctx, q, id)
}

func (r *AccountRepo) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}
