package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// duplicateKeyMarkers covers drivers that bypass gorm's TranslateError:
// postgres 23505, mysql 1062 and both sqlite drivers.
var duplicateKeyMarkers = []string{
	"duplicate key value violates unique constraint",
	"SQLSTATE 23505",
	"Error 1062",
	"UNIQUE constraint failed",
}

// IsDuplicateKeyErr reports whether err is a unique-index violation.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	for _, marker := range duplicateKeyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
