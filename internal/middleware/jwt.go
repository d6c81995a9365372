package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/packing-qr-api/internal/models"
	appErrors "github.com/noah-isme/packing-qr-api/pkg/errors"
	"github.com/noah-isme/packing-qr-api/pkg/response"
)

// ContextActorKey is the gin context key storing verified actor claims.
const ContextActorKey = "actor"

// ActorVerifier validates bearer tokens.
type ActorVerifier interface {
	Verify(token string) (*models.ActorClaims, error)
}

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// JWT rejects requests without a valid bearer token.
func JWT(verifier ActorVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		token, ok := bearer(c)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextActorKey, claims)
		c.Next()
	}
}

// OptionalJWT attaches claims when a valid token is present but never blocks.
func OptionalJWT(verifier ActorVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearer(c); ok {
			if claims, err := verifier.Verify(token); err == nil {
				c.Set(ContextActorKey, claims)
			}
		}
		c.Next()
	}
}

// Actor returns the verified actor of the request, or "" when anonymous.
func Actor(c *gin.Context) string {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return ""
	}
	claims, ok := value.(*models.ActorClaims)
	if !ok {
		return ""
	}
	return claims.Actor()
}
