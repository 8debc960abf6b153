// Package errhttp maps domain sentinel errors to HTTP status codes.
// Add a case to mapErrorToStatus for each new domain sentinel error.
package errhttp

import (
	"errors"
	"net/http"

	"github.com/ghuser/inventory/pkg/httpx"
	"github.com/ghuser/inventory/services/inventory/domain"
)

// WriteError maps err to a status code and writes {"error": message}.
// Client errors carry the full message; server errors carry only the
// sentinel text so store and driver details do not leak.
func WriteError(w http.ResponseWriter, err error) {
	status := mapErrorToStatus(err)
	httpx.JSONError(w, status, message(err, status))
}

// Status returns the HTTP status WriteError would use for err.
func Status(err error) int {
	return mapErrorToStatus(err)
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInventoryNotFound):
		return http.StatusNotFound // 404
	case errors.Is(err, domain.ErrInvalidProductID),
		errors.Is(err, domain.ErrNegativeStock):
		return http.StatusUnprocessableEntity // 422
	case errors.Is(err, domain.ErrPersistenceFailure):
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}

func message(err error, status int) string {
	switch {
	case status < http.StatusInternalServerError:
		return err.Error()
	case errors.Is(err, domain.ErrPersistenceFailure):
		return domain.ErrPersistenceFailure.Error()
	default:
		return http.StatusText(status)
	}
}
