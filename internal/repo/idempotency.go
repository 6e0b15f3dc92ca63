package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-garden-backend/internal/domain"
)

// GetIdempotency returns the live (unexpired at now) record for
// (userID, scope, key), or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(scope) == "" || key == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_id = ? AND scope = ? AND key = ? AND expires_at > ?", userID, scope, key, now).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency stores a key for ttl. A live record with the same
// (userID, scope, key) yields ErrDuplicate; an expired one is replaced, so a
// client may reuse a key once it has lapsed.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key string, awarded int64, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		UserID:    userID,
		Scope:     scope,
		Key:       key,
		Awarded:   awarded,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Unique index covers expired rows too; clear a lapsed one first.
		if err := tx.
			Where("user_id = ? AND scope = ? AND key = ? AND expires_at <= ?", userID, scope, key, now).
			Delete(&domain.Idempotency{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredIdempotency deletes records that expired at or before now and
// reports how many were removed.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.Idempotency{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
