package handler

import (
	"errors"
	"net/http"

	"github.com/samujjwal/rental-sub011/internal/transport/httpdto"
	rental_errors "github.com/samujjwal/rental-sub011/pkg/errors"

	"github.com/gin-gonic/gin"
)

// writeError maps the service error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, rental_errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
	case errors.Is(err, rental_errors.ErrNotParticipant):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("not a participant", "NOT_PARTICIPANT"))
	case errors.Is(err, rental_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("not found", "NOT_FOUND"))
	case errors.Is(err, rental_errors.ErrInvalidContent):
		c.JSON(http.StatusUnprocessableEntity, httpdto.NewErrorResponse("invalid content", "INVALID_CONTENT"))
	case errors.Is(err, rental_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid input", "INVALID_REQUEST"))
	case errors.Is(err, rental_errors.ErrConflict), errors.Is(err, rental_errors.ErrAlreadyExists):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse("conflict", "CONFLICT"))
	default:
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
	}
}
