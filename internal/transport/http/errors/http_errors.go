package errors

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type RateLimitError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int64  `json:"retry_after_sec"`
}

func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindAuthorization:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindTransient:
		return http.StatusServiceUnavailable
	case errs.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders a service error. Errors without a kind become a generic
// 500 so internal details never leak.
func WriteError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	status := StatusFor(kind)

	switch kind {
	case errs.KindUnknown:
		Write(w, status, APIError{Code: "INTERNAL_ERROR", Message: "internal server error"})
	case errs.KindTransient:
		Write(w, status, APIError{Code: "TEMP_UNAVAILABLE", Message: "temporarily unavailable, retry later"})
	case errs.KindRateLimited:
		secs := int64(math.Ceil(errs.RetryAfterOf(err).Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		Write(w, status, RateLimitError{
			Code:          "RATE_LIMITED",
			Message:       errs.MessageOf(err),
			RetryAfterSec: secs,
		})
	default:
		Write(w, status, APIError{
			Code:    codeFor(kind),
			Message: errs.MessageOf(err),
			Field:   errs.FieldOf(err),
		})
	}
}

func codeFor(kind errs.Kind) string {
	switch kind {
	case errs.KindValidation:
		return "VALIDATION_ERROR"
	case errs.KindConflict:
		return "CONFLICT"
	case errs.KindAuthorization:
		return "FORBIDDEN"
	case errs.KindNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}
