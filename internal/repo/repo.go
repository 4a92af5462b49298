package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("duplicate record")
	ErrSessionMismatch = errors.New("stored session does not match")
)

type GormRepo struct {
	DB *gorm.DB
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// gorm only translates driver errors when the dialector supports it;
	// fall back to the message for the postgres and sqlite drivers.
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
