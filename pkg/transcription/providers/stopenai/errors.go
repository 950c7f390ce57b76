package stopenai

import (
	"net/http"
	"strings"

	"github.com/Abraxas-365/auralis/pkg/errx"
)

var (
	// Error registry for the OpenAI transcription provider
	errorRegistry = errx.NewRegistry("STOPENAI")

	ErrAPIRequest = errorRegistry.Register(
		"API_REQUEST_FAILED",
		errx.TypeExternal,
		http.StatusBadGateway,
		"Failed to make request to OpenAI API",
	)

	ErrAPIUnauthorized = errorRegistry.Register(
		"API_UNAUTHORIZED",
		errx.TypeAuthorization,
		http.StatusUnauthorized,
		"Invalid or missing OpenAI API key",
	)

	ErrAPIRateLimit = errorRegistry.Register(
		"API_RATE_LIMIT",
		errx.TypeExternal,
		http.StatusTooManyRequests,
		"OpenAI API rate limit exceeded",
	)

	ErrAPIQuotaExceeded = errorRegistry.Register(
		"API_QUOTA_EXCEEDED",
		errx.TypeExternal,
		http.StatusForbidden,
		"OpenAI API quota exceeded",
	)

	ErrModelNotFound = errorRegistry.Register(
		"MODEL_NOT_FOUND",
		errx.TypeValidation,
		http.StatusNotFound,
		"Requested model not found or not accessible",
	)

	ErrAudioTooLarge = errorRegistry.Register(
		"AUDIO_TOO_LARGE",
		errx.TypeValidation,
		http.StatusRequestEntityTooLarge,
		"Audio file exceeds the API size limit",
	)

	ErrInvalidRequest = errorRegistry.Register(
		"INVALID_REQUEST",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Invalid request parameters",
	)
)

// ParseOpenAIError maps an OpenAI API error to a registry error.
func ParseOpenAIError(err error) *errx.Error {
	if err == nil {
		return nil
	}

	// Check if it's already a custom error
	var customErr *errx.Error
	if errx.As(err, &customErr) {
		return customErr
	}

	errLower := strings.ToLower(err.Error())

	var baseErr *errx.ErrorCode
	if strings.Contains(errLower, "unauthorized") ||
		strings.Contains(errLower, "invalid api key") ||
		strings.Contains(errLower, "incorrect api key") {
		baseErr = ErrAPIUnauthorized
	} else if strings.Contains(errLower, "rate limit") || strings.Contains(errLower, "rate_limit") {
		baseErr = ErrAPIRateLimit
	} else if strings.Contains(errLower, "quota") || strings.Contains(errLower, "insufficient_quota") {
		baseErr = ErrAPIQuotaExceeded
	} else if strings.Contains(errLower, "model") && strings.Contains(errLower, "not found") {
		baseErr = ErrModelNotFound
	} else if strings.Contains(errLower, "maximum content size") || strings.Contains(errLower, "file too large") {
		baseErr = ErrAudioTooLarge
	} else if strings.Contains(errLower, "invalid") {
		baseErr = ErrInvalidRequest
	} else {
		baseErr = ErrAPIRequest
	}

	return errorRegistry.NewWithCause(baseErr, err)
}
