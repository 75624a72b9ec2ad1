package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationInvalidLat         ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationInvalidLon         ErrorCode = "validation_invalid_longitude"
	ErrCodeValidationMissingUserID      ErrorCode = "validation_missing_user_id"
	ErrCodeValidationMissingField       ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidObservation ErrorCode = "validation_invalid_observation"
	ErrCodeValidationMissingOrigin      ErrorCode = "validation_missing_origin"
	ErrCodeValidationBatchSize          ErrorCode = "validation_batch_size_exceeded"
	ErrCodeValidationForecastHours      ErrorCode = "validation_forecast_hours"
	ErrCodeValidationUnsupportedEvent   ErrorCode = "validation_unsupported_event"

	// Not Found (404)
	ErrCodeNotFoundUser     ErrorCode = "not_found_user"
	ErrCodeNotFoundSighting ErrorCode = "not_found_sighting"

	// Internal (500)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeGeoIndexUnavailable ErrorCode = "internal_geo_index_unavailable"

	// Upstream (502)
	ErrCodeUpstreamPushProvider ErrorCode = "upstream_push_provider_unavailable"
	ErrCodeUpstreamWeather      ErrorCode = "upstream_weather_unavailable"
	ErrCodeUpstreamRateLimited  ErrorCode = "upstream_rate_limited"

	// Cache degradation. Never surfaced to callers; used for logging and
	// metrics when the cache backend is bypassed.
	ErrCodeCacheUnavailable ErrorCode = "cache_unavailable"
)

// ErrNoChannel is returned by a ChannelResolver when a recipient has no
// registered delivery channel. The dispatcher folds this into a
// skipped_no_channel outcome rather than treating it as a failure.
var ErrNoChannel = errors.New("no delivery channel registered")

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case s == string(ErrCodeUpstreamRateLimited):
		return http.StatusTooManyRequests // 429
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// IsValidation reports whether err is (or wraps) an AppError carrying a
// validation_* code.
func IsValidation(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return strings.HasPrefix(string(appErr.Code), "validation_")
}
