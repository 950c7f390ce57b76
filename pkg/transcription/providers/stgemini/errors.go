package stgemini

import (
	"net/http"
	"strings"

	"github.com/Abraxas-365/auralis/pkg/errx"
)

var (
	errorRegistry = errx.NewRegistry("STGEMINI")

	ErrAPIRequest = errorRegistry.Register(
		"API_REQUEST_FAILED",
		errx.TypeExternal,
		http.StatusBadGateway,
		"Failed to make request to Gemini API",
	)

	ErrAPIUnauthorized = errorRegistry.Register(
		"API_UNAUTHORIZED",
		errx.TypeAuthorization,
		http.StatusUnauthorized,
		"Invalid or missing Gemini API key",
	)

	ErrAPIRateLimit = errorRegistry.Register(
		"API_RATE_LIMIT",
		errx.TypeExternal,
		http.StatusTooManyRequests,
		"Gemini API rate limit exceeded",
	)

	ErrAPIQuotaExceeded = errorRegistry.Register(
		"API_QUOTA_EXCEEDED",
		errx.TypeExternal,
		http.StatusForbidden,
		"Gemini API quota exceeded",
	)

	ErrModelNotFound = errorRegistry.Register(
		"MODEL_NOT_FOUND",
		errx.TypeValidation,
		http.StatusNotFound,
		"Requested model not found or not accessible",
	)

	ErrMissingAPIKey = errorRegistry.Register(
		"MISSING_API_KEY",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Gemini API key not provided",
	)

	ErrAudioRead = errorRegistry.Register(
		"AUDIO_READ_FAILED",
		errx.TypeInternal,
		http.StatusInternalServerError,
		"Failed to read audio stream",
	)

	ErrEmptyAudio = errorRegistry.Register(
		"EMPTY_AUDIO",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Audio stream is empty",
	)

	ErrEmptyResponse = errorRegistry.Register(
		"EMPTY_RESPONSE",
		errx.TypeExternal,
		http.StatusBadGateway,
		"Gemini returned no candidates",
	)
)

// ParseGeminiError maps a Gemini SDK error to an errx.Error
func ParseGeminiError(err error) *errx.Error {
	if err == nil {
		return nil
	}

	var customErr *errx.Error
	if errx.As(err, &customErr) {
		return customErr
	}

	errLower := strings.ToLower(err.Error())

	var baseErr *errx.ErrorCode
	switch {
	case strings.Contains(errLower, "unauthorized") ||
		strings.Contains(errLower, "invalid api key") ||
		strings.Contains(errLower, "permission denied"):
		baseErr = ErrAPIUnauthorized
	case strings.Contains(errLower, "rate limit") || strings.Contains(errLower, "resource exhausted"):
		baseErr = ErrAPIRateLimit
	case strings.Contains(errLower, "quota"):
		baseErr = ErrAPIQuotaExceeded
	case strings.Contains(errLower, "not found") && strings.Contains(errLower, "model"):
		baseErr = ErrModelNotFound
	default:
		baseErr = ErrAPIRequest
	}

	return errorRegistry.NewWithCause(baseErr, err)
}

// WrapError wraps a standard error with a Gemini error code
func WrapError(err error, code *errx.ErrorCode) *errx.Error {
	if err == nil {
		return nil
	}

	var customErr *errx.Error
	if errx.As(err, &customErr) {
		return customErr
	}

	return errorRegistry.NewWithCause(code, err)
}
