package controller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/pkg/rest"
	"github.com/sharetube/watchparty/pkg/validator"
)

func (c controller) generateTimeBasedId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrCapacity), errors.Is(err, domain.ErrTransport):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (c controller) writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	if err := rest.WriteJSON(w, status, rest.Envelope{"success": true, "data": data}); err != nil {
		c.logger.InfoContext(r.Context(), "failed to write response", "error", err)
	}
}

func (c controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)
	message := err.Error()
	if status == http.StatusInternalServerError && !errors.Is(err, domain.ErrPersistence) {
		message = "internal server error"
	}

	c.logger.InfoContext(r.Context(), "request failed", "status", status, "error", err)
	if err := rest.WriteJSON(w, status, rest.Envelope{"success": false, "error": message}); err != nil {
		c.logger.InfoContext(r.Context(), "failed to write response", "error", err)
	}
}

func (c controller) writeValidationErrors(w http.ResponseWriter, r *http.Request, errs []validator.ValidationError) {
	c.logger.InfoContext(r.Context(), "validation failed", "errors", errs)
	if err := rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{
		"success": false,
		"error":   validator.Join(errs),
		"errors":  errs,
	}); err != nil {
		c.logger.InfoContext(r.Context(), "failed to write response", "error", err)
	}
}

// readRequest decodes and validates the body into dst, writing the error
// response itself when it reports false.
func (c controller) readRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := rest.ReadJSON(r, dst); err != nil {
		c.writeError(w, r, fmt.Errorf("%w: %w", domain.ErrValidation, err))
		return false
	}

	if validationErrors, ok := c.validate.Validate(dst); !ok {
		c.writeValidationErrors(w, r, validationErrors)
		return false
	}

	return true
}
