// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-relay/internal/domain"
)

// PairStats returns aggregate metadata for the conversation between a and b:
// the total number of rows and the greatest UpdatedAt among them. Flag flips
// bump updated_at, so read receipts change the result too.
//
// When the pair has no messages, count is 0 and maxUpdatedAt is nil.
func PairStats(ctx context.Context, db *gorm.DB, a, b uint) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Scopes(pairScope(a, b))

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	q = db.WithContext(ctx).Model(&domain.Message{}).Scopes(pairScope(a, b))
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
