package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/packing-qr-api/internal/models"
	appErrors "github.com/noah-isme/packing-qr-api/pkg/errors"
)

// ActorVerifier validates HS256 bearer tokens carrying operator identity.
type ActorVerifier struct {
	secret []byte
}

// NewActorVerifier constructs a verifier for tokens signed with secret.
func NewActorVerifier(secret string) *ActorVerifier {
	return &ActorVerifier{secret: []byte(secret)}
}

// Verify parses token and returns its claims.
func (v *ActorVerifier) Verify(token string) (*models.ActorClaims, error) {
	if len(v.secret) == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token verification disabled")
	}
	parsed, err := jwt.ParseWithClaims(token, &models.ActorClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	claims, ok := parsed.Claims.(*models.ActorClaims)
	if !ok || !parsed.Valid || claims.Actor() == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}
