// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/tillbook/tillbook/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		ProblemCode(w, http.StatusNotFound, "Not Found", err.Error(), shared.Code(err))
	case errors.Is(err, shared.ErrDuplicate):
		ProblemCode(w, http.StatusConflict, "Duplicate", err.Error(), shared.Code(err))
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrInsufficientStock):
		ProblemCode(w, http.StatusBadRequest, "Validation Failed", err.Error(), shared.Code(err))
	case errors.Is(err, shared.ErrForbidden):
		ProblemCode(w, http.StatusForbidden, "Forbidden", err.Error(), shared.Code(err))
	default:
		ProblemCode(w, http.StatusInternalServerError, "Internal Error", "", shared.Code(err))
	}
}
