package shared

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across domain packages. Handlers translate them into
// HTTP problem documents; the codes themselves are transport-agnostic.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or out-of-range input. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates a cross-tenant access attempt. Always fatal.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInsufficientStock indicates the requested quantity exceeds availability.
	// Raised before any transactional work begins.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Code returns the application error code for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrDuplicate):
		return "DUPLICATE"
	default:
		return "INTERNAL_ERROR"
	}
}

// Validationf wraps a formatted message as a validation error.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// StockShortage reports one item that could not be fulfilled.
type StockShortage struct {
	ProductID int64
	Product   string
	Requested float64
	Available float64
}

// StockError aggregates the shortages found during availability validation.
type StockError struct {
	Shortages []StockShortage
}

func (e *StockError) Error() string {
	if len(e.Shortages) == 1 {
		s := e.Shortages[0]
		return fmt.Sprintf("insufficient stock: %s (requested %.2f, available %.2f)", s.Product, s.Requested, s.Available)
	}
	return fmt.Sprintf("insufficient stock for %d items", len(e.Shortages))
}

// Unwrap lets errors.Is match ErrInsufficientStock.
func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}
