/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package strutil contains string helpers shared by the library packages.
package strutil

import "unsafe"

// StringToBytesUnsafe returns the bytes of s without copying.
// The returned slice must not be modified.
func StringToBytesUnsafe(s string) []byte {
	if s == "" {
		return nil
	}
	// nolint: gosec // read-only view of the token for comparison
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
