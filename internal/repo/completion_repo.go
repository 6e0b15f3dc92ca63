// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for TaskCompletion.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They perform persistence and query
// composition only; cap and idempotency rules live in the services package.
//
// Error semantics:
//   - Missing rows yield ErrNotFound.
//   - A second completion for the same (user, task, day) yields ErrDuplicate.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-garden-backend/internal/domain"
)

// CreateCompletion inserts a completion row. The (user_id, task_id, day)
// tuple is unique; a conflicting insert returns ErrDuplicate.
func CreateCompletion(ctx context.Context, db *gorm.DB, userID, taskID, day string, awarded int64) (*domain.TaskCompletion, error) {
	rec := &domain.TaskCompletion{
		ID:        uuid.NewString(),
		UserID:    userID,
		TaskID:    taskID,
		Day:       day,
		Awarded:   awarded,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// GetCompletion fetches the completion for (userID, taskID, day) or ErrNotFound.
func GetCompletion(ctx context.Context, db *gorm.DB, userID, taskID, day string) (*domain.TaskCompletion, error) {
	var rec domain.TaskCompletion
	err := db.WithContext(ctx).
		Where("user_id = ? AND task_id = ? AND day = ?", userID, taskID, day).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListCompletionsForDay returns every completion userID recorded on day.
func ListCompletionsForDay(ctx context.Context, db *gorm.DB, userID, day string) ([]domain.TaskCompletion, error) {
	var out []domain.TaskCompletion
	err := db.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, day).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// CompletedTaskIDsBetween returns the distinct task ids userID completed on
// days in [fromDay, toDay). Days are compared as YYYY-MM-DD strings.
func CompletedTaskIDsBetween(ctx context.Context, db *gorm.DB, userID, fromDay, toDay string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.TaskCompletion{}).
		Where("user_id = ? AND day >= ? AND day < ?", userID, fromDay, toDay).
		Distinct().
		Pluck("task_id", &ids).Error
	return ids, err
}

// SumAwardedForDay returns the total currency credited to userID on day.
func SumAwardedForDay(ctx context.Context, db *gorm.DB, userID, day string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.TaskCompletion{}).
		Select("COALESCE(SUM(awarded), 0)").
		Where("user_id = ? AND day = ?", userID, day).
		Scan(&total).Error
	return total, err
}

// CountCompletions returns how many completions userID has ever recorded.
func CountCompletions(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.TaskCompletion{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListCompletionsPage returns a page of userID's completions, newest first.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListCompletionsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.TaskCompletion, error) {
	var out []domain.TaskCompletion
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("day desc, created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
