package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

var validate = validator.New()

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes. The more specific
// sentinels wrap the generic ones, so they are checked first.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrDuplicateSession),
		errors.Is(err, types.ErrAgentUnavailable),
		errors.Is(err, types.ErrCapacityExceeded),
		errors.Is(err, types.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		msg = "internal error"
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}

func respond(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// decode reads a JSON body into v and runs its validate tags
func decode(r *http.Request, v interface{}) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", types.ErrValidation, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	return nil
}
