package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-garden-backend/internal/domain"
)

// CreateBonusClaim inserts the all-done bonus claim for (userID, day).
// A second claim for the same day returns ErrDuplicate.
func CreateBonusClaim(ctx context.Context, db *gorm.DB, userID, day string, awarded int64) (*domain.BonusClaim, error) {
	rec := &domain.BonusClaim{
		ID:        uuid.NewString(),
		UserID:    userID,
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

// GetBonusClaim fetches the claim for (userID, day) or ErrNotFound.
func GetBonusClaim(ctx context.Context, db *gorm.DB, userID, day string) (*domain.BonusClaim, error) {
	var rec domain.BonusClaim
	err := db.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, day).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}
