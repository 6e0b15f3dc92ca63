package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a unique constraint rejected an insert.
var ErrDuplicate = errors.New("duplicate")

// isDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint" (SQLSTATE 23505)
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key") ||
		strings.Contains(low, "sqlstate 23505")
}
