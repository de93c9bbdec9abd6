package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/peerspark/peerspark-backend/internal/clients/redis"
	"github.com/peerspark/peerspark-backend/internal/pkg/errs"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps the engine's error taxonomy onto HTTP statuses.
// Anything unrecognized is a 500.
func RespondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, errs.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, errs.ErrConfigurationMissing):
		RespondError(c, http.StatusUnprocessableEntity, "configuration_missing", err)
	case errors.Is(err, errs.ErrNoEmbeddingAvailable):
		RespondError(c, http.StatusConflict, "no_embedding_available", err)
	case errors.Is(err, redis.ErrTurnInFlight):
		RespondError(c, http.StatusConflict, "turn_in_flight", err)
	case errors.Is(err, errs.ErrEmbeddingUnavailable):
		RespondError(c, http.StatusBadGateway, "embedding_unavailable", err)
	case errors.Is(err, errs.ErrGenerationFailure):
		RespondError(c, http.StatusBadGateway, "generation_failure", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
