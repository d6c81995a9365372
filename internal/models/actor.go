package models

import "github.com/golang-jwt/jwt/v5"

// ActorClaims identifies the operator behind a request. Tokens are minted by
// the identity provider; this service only verifies them.
type ActorClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Actor returns the identity recorded in audit entries and scans.
func (c *ActorClaims) Actor() string {
	if c == nil {
		return ""
	}
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}
