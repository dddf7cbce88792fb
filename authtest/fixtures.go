/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authtest

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/acronis/go-tokenguard/introspection"
)

// Fixture describes how the mock authorization server should introspect a token.
//
// Example of the YAML document accepted by LoadFixtures:
//
//	tokens:
//	  - token: eyJhbGciOi...
//	    active: true
//	    expiresIn: 1h
//	    scope: [api.read, api.write]
//	    user: {number: 42, id: "user-42"}
//	    clientId: my-client
type Fixture struct {
	Token     string        `yaml:"token"`
	Active    bool          `yaml:"active"`
	ExpiresIn time.Duration `yaml:"expiresIn"`
	Scope     []string      `yaml:"scope"`
	User      *FixtureUser  `yaml:"user"`
	ClientID  string        `yaml:"clientId"`
}

// FixtureUser is the user part of Fixture.
type FixtureUser struct {
	Number int64  `yaml:"number"`
	ID     string `yaml:"id"`
}

type fixturesDocument struct {
	Tokens []Fixture `yaml:"tokens"`
}

// LoadFixtures reads YAML fixtures and converts them to introspection results keyed by token.
// Expiration time is computed relative to the given moment.
func LoadFixtures(r io.Reader, now time.Time) (map[string]introspection.Result, error) {
	var doc fixturesDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode fixtures yaml: %w", err)
	}
	results := make(map[string]introspection.Result, len(doc.Tokens))
	for i, f := range doc.Tokens {
		if f.Token == "" {
			return nil, fmt.Errorf("fixture #%d: token is required", i)
		}
		if _, ok := results[f.Token]; ok {
			return nil, fmt.Errorf("fixture #%d: duplicate token", i)
		}
		results[f.Token] = f.Result(now)
	}
	return results, nil
}

// Result converts the fixture to the introspection result.
func (f Fixture) Result(now time.Time) introspection.Result {
	result := introspection.Result{Active: f.Active, Scope: f.Scope}
	if f.ExpiresIn != 0 {
		result.Exp = now.Add(f.ExpiresIn).Unix()
	}
	if f.User != nil {
		result.User = &introspection.User{Number: f.User.Number, ID: f.User.ID}
	}
	if f.ClientID != "" {
		result.Client = &introspection.Client{ID: f.ClientID}
	}
	return result
}
