package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is the repository-level not-found error. Postgres
// implementations map gorm.ErrRecordNotFound onto it so services never
// depend on the driver.
var ErrNotFound = errors.New("record not found")

// IsNotFoundError reports whether err represents a missing record.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
