/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package tokenguard

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes that are used in error responses.
// We are using "var" here because some services may want to use different error codes.
var (
	ErrCodeAuthConfigurationInvalid = "authConfigurationInvalid"
	ErrCodeBearerTokenMissing       = "bearerTokenMissing"
	ErrCodeBearerTokenMalformed     = "bearerTokenMalformed"
	ErrCodeAuthenticationFailed     = "authenticationFailed"
	ErrCodeAuthorizationFailed      = "authorizationFailed"
)

// Error messages that are used in error responses.
// We are using "var" here because some services may want to use different error messages.
var (
	ErrMessageAuthConfigurationInvalid = "Authentication is not configured properly."
	ErrMessageBearerTokenMissing       = "Authorization bearer token is missing."
	ErrMessageBearerTokenMalformed     = "Authorization bearer token is malformed."
	ErrMessageAuthenticationFailed     = "Authentication is failed."
	ErrMessageAuthorizationFailed      = "Authorization is failed."
)

// Sentinel errors that may be found in the error chain of Error.
var (
	ErrConfigInvalid              = errors.New("auth configuration is invalid")
	ErrGuardNotInitialized        = errors.New("guard is not initialized")
	ErrRequestHeadersMissing      = errors.New("request headers are missing")
	ErrBearerTokenMissing         = errors.New("bearer token is missing")
	ErrAuthorizationHeaderTooLong = errors.New("authorization header is too long")
	ErrBearerTokenMalformed       = errors.New("bearer token is malformed")
	ErrTokenNotActive             = errors.New("token is not active")
	ErrInsufficientScope          = errors.New("token has insufficient scope")
	ErrScopeNotPopulated          = errors.New("token scope is not populated in the request context")
)

// ErrorKind classifies errors by the HTTP status they are translated to.
type ErrorKind int

// Error kinds.
const (
	ErrorKindConfiguration ErrorKind = iota + 1
	ErrorKindAuthorization
	ErrorKindForbidden
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindConfiguration:
		return "configuration"
	case ErrorKindAuthorization:
		return "authorization"
	case ErrorKindForbidden:
		return "forbidden"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// HTTPStatus returns the HTTP status code the error kind is translated to.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case ErrorKindAuthorization:
		return http.StatusUnauthorized
	case ErrorKindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Bearer challenge error codes (RFC 6750, section 3.1).
const (
	challengeErrorInvalidRequest    = "invalid_request"
	challengeErrorInvalidToken      = "invalid_token"
	challengeErrorInsufficientScope = "insufficient_scope"
)

// Error is a typed error produced by the access token validation.
// Code and Message are used in the error response body.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error

	challengeError string
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " error: " + e.Message
	}
	return e.Kind.String() + " error: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code the error is translated to.
func (e *Error) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// IsConfigurationError reports whether the error is a configuration error.
func IsConfigurationError(err error) bool {
	return isErrorOfKind(err, ErrorKindConfiguration)
}

// IsAuthorizationError reports whether the error is an authorization (401) error.
func IsAuthorizationError(err error) bool {
	return isErrorOfKind(err, ErrorKindAuthorization)
}

// IsForbiddenError reports whether the error is a forbidden (403) error.
func IsForbiddenError(err error) bool {
	return isErrorOfKind(err, ErrorKindForbidden)
}

func isErrorOfKind(err error, kind ErrorKind) bool {
	var guardErr *Error
	return errors.As(err, &guardErr) && guardErr.Kind == kind
}

func newConfigurationError(err error) *Error {
	return &Error{
		Kind:    ErrorKindConfiguration,
		Code:    ErrCodeAuthConfigurationInvalid,
		Message: ErrMessageAuthConfigurationInvalid,
		Err:     err,
	}
}

func newBearerTokenMissingError() *Error {
	return &Error{
		Kind:    ErrorKindAuthorization,
		Code:    ErrCodeBearerTokenMissing,
		Message: ErrMessageBearerTokenMissing,
		Err:     ErrBearerTokenMissing,
	}
}

func newBearerTokenMalformedError(err error) *Error {
	return &Error{
		Kind:           ErrorKindAuthorization,
		Code:           ErrCodeBearerTokenMalformed,
		Message:        ErrMessageBearerTokenMalformed,
		Err:            err,
		challengeError: challengeErrorInvalidRequest,
	}
}

func newAuthenticationFailedError(err error) *Error {
	return &Error{
		Kind:           ErrorKindAuthorization,
		Code:           ErrCodeAuthenticationFailed,
		Message:        ErrMessageAuthenticationFailed,
		Err:            err,
		challengeError: challengeErrorInvalidToken,
	}
}

func newForbiddenError(err error) *Error {
	return &Error{
		Kind:           ErrorKindForbidden,
		Code:           ErrCodeAuthorizationFailed,
		Message:        ErrMessageAuthorizationFailed,
		Err:            err,
		challengeError: challengeErrorInsufficientScope,
	}
}
