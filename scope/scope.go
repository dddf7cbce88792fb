/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package scope provides normalization and matching of access token scopes.
package scope

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidScope is returned when a scope argument is absent or has an unsupported shape.
var ErrInvalidScope = errors.New("invalid scope")

// Normalize converts a single scope string or a list of scope strings into a canonical list.
// Supported types are string, []string and []interface{} holding strings.
// Nil, empty lists, blank scope strings and other types are rejected with ErrInvalidScope.
func Normalize(v interface{}) ([]string, error) {
	switch val := v.(type) {
	case string:
		return normalizeStrings([]string{val})
	case []string:
		return normalizeStrings(val)
	case []interface{}:
		scopes := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: element #%d has type %T, string expected", ErrInvalidScope, i, item)
			}
			scopes = append(scopes, s)
		}
		return normalizeStrings(scopes)
	case nil:
		return nil, fmt.Errorf("%w: scope is not specified", ErrInvalidScope)
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidScope, v)
	}
}

func normalizeStrings(scopes []string) ([]string, error) {
	if len(scopes) == 0 {
		return nil, fmt.Errorf("%w: at least one scope is required", ErrInvalidScope)
	}
	result := make([]string, 0, len(scopes))
	for i, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("%w: element #%d is blank", ErrInvalidScope, i)
		}
		result = append(result, s)
	}
	return result, nil
}

// Match reports whether at least one of the required scopes is granted.
// It returns false if either list is empty.
func Match(granted, required []string) bool {
	if len(granted) == 0 || len(required) == 0 {
		return false
	}
	for _, r := range required {
		for _, g := range granted {
			if g == r {
				return true
			}
		}
	}
	return false
}
