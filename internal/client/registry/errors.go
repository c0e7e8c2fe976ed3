package registry

import (
	"fmt"
	"net/http"

	"github.com/sharetube/watchparty/internal/domain"
)

// APIError is a non-2xx answer of the registry.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("registry responded with status %d", e.Status)
	}

	return e.Message
}

// Unwrap maps the status to the domain error taxonomy.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.ErrValidation
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrConflict
	case http.StatusForbidden:
		return domain.ErrPermissionDenied
	case http.StatusServiceUnavailable:
		return domain.ErrCapacity
	case http.StatusTooManyRequests:
		return domain.ErrTransport
	default:
		return domain.ErrPersistence
	}
}
