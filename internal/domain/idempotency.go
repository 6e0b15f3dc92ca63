package domain

import "time"

// Idempotency records that a POST carrying an Idempotency-Key completed,
// keyed by (user_id, scope, key). Scope identifies the operation, e.g.
// "complete:water_plants" or "bonus".
type Idempotency struct {
	ID        string    `gorm:"type:varchar(36);not null;primaryKey"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_scope_key,priority:1"`
	Scope     string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_user_scope_key,priority:2"`
	Key       string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_user_scope_key,priority:3"`
	Awarded   int64     `gorm:"not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
