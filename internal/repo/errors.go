package repo

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicate      = errors.New("duplicate value")
	ErrAlreadyRevoked = errors.New("token already revoked")
)

const pgUniqueViolation = "23505"

// IsUniqueViolation recognises unique-constraint failures from postgres (pgx)
// and sqlite drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key value")
}

// DuplicateField names the users column behind a unique violation: "email",
// "username" or "" when it cannot be told.
func DuplicateField(err error) string {
	if err == nil {
		return ""
	}
	text := err.Error()
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		text = pgErr.ConstraintName + " " + pgErr.Detail
	}
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "email"):
		return "email"
	case strings.Contains(text, "username"):
		return "username"
	}
	return ""
}
