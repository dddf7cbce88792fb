/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package introspection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Result is a token introspection result returned by the authorization server.
// It must be treated as immutable once received.
type Result struct {
	// Active indicates whether the token is currently active.
	Active bool `json:"active"`

	// Exp is the token expiration time (seconds since epoch).
	Exp int64 `json:"exp,omitempty"`

	// Scope is a list of scopes granted to the token.
	Scope Scope `json:"scope,omitempty"`

	// User contains information about the user the token was issued for (if any).
	User *User `json:"user,omitempty"`

	// Client contains information about the client the token was issued to.
	Client *Client `json:"client,omitempty"`
}

// User is the user information returned by the introspection endpoint.
type User struct {
	Number int64  `json:"number,omitempty"`
	ID     string `json:"id,omitempty"`
}

// Client is the client information returned by the introspection endpoint.
type Client struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// ExpiresAt returns the token expiration time.
func (r Result) ExpiresAt() time.Time {
	return time.Unix(r.Exp, 0)
}

// IsExpired reports whether the token expiration time has passed at the given moment.
// A token without expiration time is considered expired.
func (r Result) IsExpired(now time.Time) bool {
	return r.Exp <= now.Unix()
}

// Clone returns a deep copy of the result.
func (r Result) Clone() Result {
	clone := r
	if r.Scope != nil {
		clone.Scope = append(make(Scope, 0, len(r.Scope)), r.Scope...)
	}
	if r.User != nil {
		u := *r.User
		clone.User = &u
	}
	if r.Client != nil {
		c := *r.Client
		clone.Client = &c
	}
	return clone
}

// Scope is an ordered list of scopes granted to the token.
// It may be decoded from a JSON array of strings or from a space-delimited string (RFC 7662).
type Scope []string

// UnmarshalJSON implements json.Unmarshaler interface.
func (s *Scope) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("unmarshal scope string: %w", err)
		}
		*s = strings.Fields(str)
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("unmarshal scope list: %w", err)
	}
	*s = items
	return nil
}
