package entity

import "time"

// Note is a short text entry owned by one account. The JSON names follow the
// web client (`_id`, `user`).
type Note struct {
	ID        string    `db:"id" json:"_id"`
	AccountID string    `db:"account_id" json:"user"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
