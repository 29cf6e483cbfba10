package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/note/entity"
)

var ErrNotFound = sql.ErrNoRows

// NoteRepo provides data access for the notes table using sqlx.
type NoteRepo struct {
	db *sqlx.DB
}

func NewNoteRepo(db *sqlx.DB) *NoteRepo { return &NoteRepo{db: db} }

// ListByAccount returns the account's notes, newest first.
func (r *NoteRepo) ListByAccount(ctx context.Context, accountID string) ([]entity.Note, error) {
	const q = `SELECT id, account_id, title, content, created_at, updated_at
		FROM notes WHERE account_id=$1 ORDER BY created_at DESC`
	notes := []entity.Note{}
	if err := r.db.SelectContext(ctx, &notes, q, accountID); err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *NoteRepo) Get(ctx context.Context, id string) (*entity.Note, error) {
	const q = `SELECT id, account_id, title, content, created_at, updated_at FROM notes WHERE id=$1`
	var n entity.Note
	if err := r.db.GetContext(ctx, &n, q, id); err != nil {
		return nil, err
	}
	return &n, nil
}

// Create inserts n and fills its timestamps.
func (r *NoteRepo) Create(ctx context.Context, n *entity.Note) error {
	const q = `INSERT INTO notes (id, account_id, title, content) VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`
	return r.db.QueryRowxContext(ctx, q, n.ID, n.AccountID, n.Title, n.Content).
		Scan(&n.CreatedAt, &n.UpdatedAt)
}

// Update writes title and content and refreshes UpdatedAt.
func (r *NoteRepo) Update(ctx context.Context, n *entity.Note) error {
	const q = `UPDATE notes SET title=$2, content=$3, updated_at=NOW() WHERE id=$1 RETURNING updated_at`
	return r.db.GetContext(ctx, &n.UpdatedAt, q, n.ID, n.Title, n.Content)
}

func (r *NoteRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id=$1`, id)
	if err != nil {
		return err
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

// IsNotFound reports whether err means the note does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
