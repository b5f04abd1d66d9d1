// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the read side of the external user
// directory plus the two presence columns the relay owns.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-relay/internal/domain"
)

// GetUser fetches a user by ID or returns ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUsersByIDs loads the given users keyed by id. Unknown ids are absent
// from the result.
func GetUsersByIDs(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]domain.User, error) {
	out := make(map[uint]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.User
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, u := range rows {
		out[u.ID] = u
	}
	return out, nil
}

// SetOnline marks a user online. Unknown ids are a no-op.
func SetOnline(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("is_online", true).Error
}

// SetOffline marks a user offline and records the last-seen time.
func SetOffline(ctx context.Context, db *gorm.DB, id uint, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_online": false, "last_seen_time": at}).Error
}

// UpsertUser inserts u or overwrites the profile columns of an existing row.
// Used for seeding in tests and local development.
func UpsertUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "profile_pictures", "user_type"}),
		}).
		Create(u).Error
}
