// Package note stores short text notes for authenticated accounts.
package note

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/note/entity"
	noterepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/note/repo"
)

var (
	ErrNotFound     = errors.New("note not found")
	ErrForbidden    = errors.New("note belongs to another account")
	ErrTitleMissing = errors.New("title is required")
)

type Store interface {
	ListByAccount(ctx context.Context, accountID string) ([]entity.Note, error)
	Get(ctx context.Context, id string) (*entity.Note, error)
	Create(ctx context.Context, n *entity.Note) error
	Update(ctx context.Context, n *entity.Note) error
	Delete(ctx context.Context, id string) error
}

type Service struct {
	store Store
	newID func() string
}

func NewService(store Store, newID func() string) *Service {
	return &Service{store: store, newID: newID}
}

func (s *Service) List(ctx context.Context, accountID string) ([]entity.Note, error) {
	return s.store.ListByAccount(ctx, accountID)
}

func (s *Service) Create(ctx context.Context, accountID, title, content string) (*entity.Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleMissing
	}
	n := &entity.Note{ID: s.newID(), AccountID: accountID, Title: title, Content: content}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	return n, nil
}

// Update changes title and content of a note owned by accountID.
func (s *Service) Update(ctx context.Context, accountID, id, title, content string) (*entity.Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleMissing
	}
	n, err := s.owned(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	n.Title, n.Content = title, content
	if err := s.store.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, accountID, id string) error {
	if _, err := s.owned(ctx, accountID, id); err != nil {
		return err
	}
	err := s.store.Delete(ctx, id)
	if noterepo.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (s *Service) owned(ctx context.Context, accountID, id string) (*entity.Note, error) {
	n, err := s.store.Get(ctx, id)
	if noterepo.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load note: %w", err)
	}
	if n.AccountID != accountID {
		return nil, ErrForbidden
	}
	return n, nil
}
