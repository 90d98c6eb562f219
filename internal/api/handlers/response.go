package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/isdelr/calcapi/internal/models"
	"github.com/isdelr/calcapi/internal/services"
	"github.com/rs/zerolog/log"
)

// writeErr sends JSON { "error": message, "code": errCode }. If errCode is empty, a default is used from code.
func writeErr(w http.ResponseWriter, code int, errCode string, message string) {
	if errCode == "" {
		errCode = defaultErrCode(code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": errCode})
}

func defaultErrCode(httpCode int) string {
	switch httpCode {
	case http.StatusBadRequest:
		return ErrCodeInvalidRequest
	case http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusTooManyRequests:
		return ErrCodeRateLimited
	default:
		return ErrCodeInternal
	}
}

// writeJSON encodes v before writing the status, so a value that can't be
// encoded becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		writeErr(w, http.StatusInternalServerError, ErrCodeInternal, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}

// errorStatus maps a domain error to an HTTP status and error code.
// Anything unrecognised is an internal error.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, ErrCodeInvalidRequest
	case errors.Is(err, services.ErrDuplicateIdentity):
		return http.StatusBadRequest, ErrCodeDuplicateIdentity
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrCodeInvalidCredentials
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, models.ErrUnsupportedType):
		return http.StatusBadRequest, ErrCodeUnsupportedType
	case errors.Is(err, models.ErrDivisionByZero):
		return http.StatusBadRequest, ErrCodeDivisionByZero
	case errors.Is(err, models.ErrInvalidInputs):
		return http.StatusBadRequest, ErrCodeInvalidInputs
	case errors.Is(err, models.ErrResultOverflow):
		return http.StatusBadRequest, ErrCodeResultOverflow
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// writeServiceErr writes err using errorStatus. Internal errors get an
// opaque message.
func writeServiceErr(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeErr(w, status, code, msg)
}

// RateLimited is the limiter's reached handler.
func RateLimited(w http.ResponseWriter, r *http.Request) {
	writeErr(w, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
}
