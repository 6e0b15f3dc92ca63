// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file is the shared wallet accessor: reads, lazy
// creation, per-user locking and additive credits. Balances are never
// overwritten.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-garden-backend/internal/domain"
)

// ErrNegativeCredit rejects credits that would decrease a balance.
var ErrNegativeCredit = errors.New("wallet credits must be non-negative")

// GetWallet returns userID's wallet. A missing row is a valid initial state
// and yields a zero wallet, not an error.
func GetWallet(ctx context.Context, db *gorm.DB, userID string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.Wallet{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// EnsureWallet creates a zero wallet for userID if none exists.
func EnsureWallet(ctx context.Context, db *gorm.DB, userID string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&domain.Wallet{UserID: userID, CreatedAt: now, UpdatedAt: now}).Error
}

// LockWallet ensures userID's wallet exists and locks it for the rest of the
// transaction. On Postgres this is SELECT ... FOR UPDATE. On SQLite the
// preceding insert already holds the database write lock, which serializes
// writers the same way.
//
// Must be called inside a transaction.
func LockWallet(ctx context.Context, tx *gorm.DB, userID string) (*domain.Wallet, error) {
	if err := EnsureWallet(ctx, tx, userID); err != nil {
		return nil, err
	}
	q := tx.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	var w domain.Wallet
	if err := q.Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// CreditWallet adds primary and bonus to userID's balances with an
// upsert-with-increment, creating the wallet if needed. Primary credits also
// raise lifetime_earned.
func CreditWallet(ctx context.Context, db *gorm.DB, userID string, primary, bonus int64) error {
	if primary < 0 || bonus < 0 {
		return ErrNegativeCredit
	}
	now := time.Now().UTC()
	w := &domain.Wallet{
		UserID:         userID,
		PrimaryBalance: primary,
		BonusBalance:   bonus,
		LifetimeEarned: primary,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"primary_balance": gorm.Expr("wallets.primary_balance + ?", primary),
				"bonus_balance":   gorm.Expr("wallets.bonus_balance + ?", bonus),
				"lifetime_earned": gorm.Expr("wallets.lifetime_earned + ?", primary),
				"updated_at":      now,
			}),
		}).
		Create(w).Error
}
