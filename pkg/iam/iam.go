// Package iam holds identity errors shared by the auth context and the
// middleware protecting the API.
package iam

import (
	"net/http"

	"github.com/Abraxas-365/auralis/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("IAM")

var (
	CodeUnauthorized       = ErrRegistry.Register("UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "Unauthorized")
	CodeInvalidToken       = ErrRegistry.Register("INVALID_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid or expired token")
	CodeAccessDenied       = ErrRegistry.Register("ACCESS_DENIED", errx.TypeAuthorization, http.StatusForbidden, "Access denied")
	CodeInvalidCredentials = ErrRegistry.Register("INVALID_CREDENTIALS", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid email or password")
	CodeEmailTaken         = ErrRegistry.Register("EMAIL_TAKEN", errx.TypeConflict, http.StatusConflict, "Email is already registered")
	CodeUserNotFound       = ErrRegistry.Register("USER_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User not found")
)

func ErrUnauthorized() *errx.Error {
	return ErrRegistry.New(CodeUnauthorized)
}

func ErrInvalidToken() *errx.Error {
	return ErrRegistry.New(CodeInvalidToken)
}

func ErrAccessDenied() *errx.Error {
	return ErrRegistry.New(CodeAccessDenied)
}

func ErrInvalidCredentials() *errx.Error {
	return ErrRegistry.New(CodeInvalidCredentials)
}

func ErrEmailTaken() *errx.Error {
	return ErrRegistry.New(CodeEmailTaken)
}

func ErrUserNotFound() *errx.Error {
	return ErrRegistry.New(CodeUserNotFound)
}
