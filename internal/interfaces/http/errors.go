package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/itinerary"
)

// statusFor maps a domain error onto an HTTP status code
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPrecondition), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a Response. Internal errors are logged and
// hidden from the caller.
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	resp := Response{Success: false, Error: err.Error()}

	var dfe *itinerary.DisallowedFieldError
	if errors.As(err, &dfe) {
		resp.Data = gin.H{"field": dfe.Field, "segmentId": dfe.SegmentID}
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "op", op, "error", err)
		resp.Error = op + " failed"
	}

	c.JSON(status, resp)
}

// badRequest writes a 400 with msg
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}
