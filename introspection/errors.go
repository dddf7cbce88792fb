/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package introspection

import (
	"errors"
	"fmt"
)

// ErrIntrospectionFailed is returned when the introspection request could not be done
// or its response could not be parsed.
var ErrIntrospectionFailed = errors.New("token introspection failed")

// ErrIntrospectionTimeout is returned (together with ErrIntrospectionFailed)
// when the introspection request was aborted by the timeout.
var ErrIntrospectionTimeout = errors.New("token introspection timed out")

// UnexpectedResponseError is returned when the introspection endpoint responds with non-200 HTTP status code.
// It matches ErrIntrospectionFailed with errors.Is.
type UnexpectedResponseError struct {
	StatusCode int

	// Status is the status text of the response (e.g. "401 Unauthorized").
	Status string

	// WWWAuthenticate is the value of the WWW-Authenticate header of the response (if any).
	WWWAuthenticate string

	// Body contains the (possibly truncated) response body. It's used for diagnostic purposes only.
	Body string
}

func (e *UnexpectedResponseError) Error() string {
	msg := fmt.Sprintf("unexpected HTTP status code %d (%s)", e.StatusCode, e.Status)
	if e.WWWAuthenticate != "" {
		msg += fmt.Sprintf(", WWW-Authenticate: %s", e.WWWAuthenticate)
	}
	if e.Body != "" {
		msg += fmt.Sprintf(", body: %q", e.Body)
	}
	return msg
}

func (e *UnexpectedResponseError) Unwrap() error {
	return ErrIntrospectionFailed
}
