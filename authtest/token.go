/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authtest

import (
	"time"

	jwtgo "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TestSigningKey is a key for signing test tokens.
// Signatures are never verified by the middleware, but tokens have the real JWT shape.
var TestSigningKey = []byte("go-tokenguard-test-signing-key") // nolint:gosec // This key is used for testing purposes only.

// NewClaims creates registered claims for the subject with a unique ID that expire in the given duration.
func NewClaims(subject string, expiresIn time.Duration) jwtgo.RegisteredClaims {
	now := time.Now()
	return jwtgo.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwtgo.NewNumericDate(now),
		ExpiresAt: jwtgo.NewNumericDate(now.Add(expiresIn)),
	}
}

// MakeToken makes a JWT access token signed with TestSigningKey.
func MakeToken(claims jwtgo.Claims) (string, error) {
	return jwtgo.NewWithClaims(jwtgo.SigningMethodHS256, claims).SignedString(TestSigningKey)
}

// MustMakeToken does the same as MakeToken but panics on error.
func MustMakeToken(claims jwtgo.Claims) string {
	token, err := MakeToken(claims)
	if err != nil {
		panic(err)
	}
	return token
}

// NewToken makes a unique JWT access token for the subject that expires in the given duration.
func NewToken(subject string, expiresIn time.Duration) string {
	return MustMakeToken(NewClaims(subject, expiresIn))
}
