// Package services – DirectoryService
//
// DirectoryService is the relay's window onto the external user directory.
// It reads profile and role data and writes only the presence columns.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/repo"
)

// DirectoryService implements presence.Directory over the users table.
type DirectoryService struct {
	DB *gorm.DB
}

// Lookup returns the user or ErrUserNotFound.
func (s *DirectoryService) Lookup(ctx context.Context, userID uint) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

// SetOnline marks userID online.
func (s *DirectoryService) SetOnline(ctx context.Context, userID uint) error {
	if err := repo.SetOnline(ctx, s.DB, userID); err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

// SetOffline marks userID offline as of at.
func (s *DirectoryService) SetOffline(ctx context.Context, userID uint, at time.Time) error {
	if err := repo.SetOffline(ctx, s.DB, userID, at.UTC()); err != nil {
		return fmt.Errorf("set offline: %w", err)
	}
	return nil
}
