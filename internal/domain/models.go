// Package domain defines the persistence models for the daily task ledger.
// These types are mapped with GORM and shared across the repository and
// service layers.
package domain

import "time"

// DayLayout is the storage format for calendar days. Days are compared
// lexicographically, so the layout must stay zero-padded year-first.
const DayLayout = "2006-01-02"

// DayKey formats t as a calendar day in t's own location.
func DayKey(t time.Time) string { return t.Format(DayLayout) }

// TaskCompletion marks that a user finished a catalog task on a given day.
// At most one row exists per (user_id, task_id, day), enforced by a unique index.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: owner of the completion.
//   - TaskID: catalog task id.
//   - Day: calendar day (YYYY-MM-DD) in the server time zone.
//   - Awarded: currency actually credited; lower than the task reward when the
//     daily cap truncated it, zero when the cap was already reached.
type TaskCompletion struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;uniqueIndex:ux_completion_user_task_day,priority:1;index:idx_completion_user_day,priority:1"`
	TaskID    string    `json:"task_id"    gorm:"type:varchar(64);not null;uniqueIndex:ux_completion_user_task_day,priority:2"`
	Day       string    `json:"day"        gorm:"type:varchar(10);not null;uniqueIndex:ux_completion_user_task_day,priority:3;index:idx_completion_user_day,priority:2"`
	Awarded   int64     `json:"awarded"    gorm:"not null;default:0;check:awarded >= 0"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for TaskCompletion.
func (TaskCompletion) TableName() string { return "task_completions" }

// BonusClaim marks that a user claimed the all-tasks-done bonus for a day.
// At most one row exists per (user_id, day).
type BonusClaim struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;uniqueIndex:ux_bonus_user_day,priority:1"`
	Day       string    `json:"day"        gorm:"type:varchar(10);not null;uniqueIndex:ux_bonus_user_day,priority:2"`
	Awarded   int64     `json:"awarded"    gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for BonusClaim.
func (BonusClaim) TableName() string { return "bonus_claims" }

// Wallet holds a user's running balances. Rows are created lazily and only
// ever changed by additive updates.
//
// Fields:
//   - PrimaryBalance: the frequently earned currency ("leaves").
//   - BonusBalance: the scarce currency granted by all-done bonuses ("plants").
//   - LifetimeEarned: total primary currency ever credited; never decreases.
type Wallet struct {
	UserID         string    `json:"-"               gorm:"type:varchar(64);primaryKey"`
	PrimaryBalance int64     `json:"primary_balance" gorm:"not null;default:0"`
	BonusBalance   int64     `json:"bonus_balance"   gorm:"not null;default:0"`
	LifetimeEarned int64     `json:"lifetime_earned" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"-"`
}

// TableName returns the database table name for Wallet.
func (Wallet) TableName() string { return "wallets" }
