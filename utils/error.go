package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation marks bad caller input (non-positive quantities, malformed dates).
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an unknown material / production run / user.
	ErrNotFound = errors.New("record not found")
	// ErrConcurrencyConflict marks a lock or isolation violation detected at commit time.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

func ValidationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

func NotFoundErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

// MaterialDeficit describes one material that cannot cover a requested deduction.
type MaterialDeficit struct {
	MaterialId   int             `json:"material_id"`
	MaterialName string          `json:"material_name"`
	Required     decimal.Decimal `json:"required"`
	Available    decimal.Decimal `json:"available"`
	Shortage     decimal.Decimal `json:"shortage"`
}

// InsufficientStockError is returned when an operation would drive any material
// quantity negative. It lists every deficient material, not just the first,
// so the caller can show the full shortage picture.
type InsufficientStockError struct {
	Deficits []MaterialDeficit
}

func (e *InsufficientStockError) Error() string {
	if len(e.Deficits) == 0 {
		return "insufficient stock"
	}
	names := make([]string, 0, len(e.Deficits))
	for _, d := range e.Deficits {
		names = append(names, fmt.Sprintf("%s (need %s, have %s)", d.MaterialName, d.Required, d.Available))
	}
	return "insufficient stock: " + strings.Join(names, ", ")
}

// IsInsufficientStock reports whether err is (or wraps) an InsufficientStockError.
func IsInsufficientStock(err error) bool {
	var ise *InsufficientStockError
	return errors.As(err, &ise)
}

// AsInsufficientStock extracts the typed error so callers can read the deficits.
func AsInsufficientStock(err error, target **InsufficientStockError) bool {
	return errors.As(err, target)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
