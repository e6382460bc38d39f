package db

import (
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/paysync/pkg/errors"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
)

// IsUniqueViolation reports whether err is a unique-constraint failure. It
// understands gorm's translated error, raw pgx/pq errors and the SQLite text.
// When constraintName is provided the message must also reference it.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	matched := errors.Is(err, gorm.ErrDuplicatedKey) ||
		pkgerrors.PGCode(err) == pgUniqueViolation ||
		strings.Contains(err.Error(), "duplicate key value") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
	if !matched {
		return false
	}
	if constraintName != "" {
		return strings.Contains(err.Error(), constraintName)
	}
	return true
}

// IsConstraintViolation reports any integrity-constraint failure: unique,
// foreign key, not-null or check.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if IsUniqueViolation(err, "") || errors.Is(err, gorm.ErrForeignKeyViolated) || errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}
	switch pkgerrors.PGCode(err) {
	case pgForeignKeyViolation, pgNotNullViolation, pgCheckViolation:
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "NOT NULL constraint failed") ||
		strings.Contains(msg, "CHECK constraint failed")
}
