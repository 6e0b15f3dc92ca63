// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-garden-backend/internal/domain"
)

// CompletionsStats returns the number of completions for userID and the
// greatest CreatedAt among them. When the user has none, count is 0 and
// maxCreatedAt is nil.
func CompletionsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.TaskCompletion{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
