package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PaulBabatuyi/files-manager/internal/service"
)

// TokenHeader carries the session token on every authenticated request.
const TokenHeader = "X-Token"

const userIDKey = "user_id"

// TokenResolver maps a session token to a user id.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (string, error)
}

// RequireToken rejects requests without a live session token.
func RequireToken(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(TokenHeader))
		if token == "" {
			abort(c, service.Unauthorized())
			return
		}

		userID, err := resolver.ResolveToken(c.Request.Context(), token)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// OptionalToken resolves the token when present. A missing or dead token
// leaves the request anonymous instead of failing it.
func OptionalToken(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(TokenHeader))
		if token != "" {
			if userID, err := resolver.ResolveToken(c.Request.Context(), token); err == nil {
				c.Set(userIDKey, userID)
			}
		}
		c.Next()
	}
}

// UserID returns the user resolved by RequireToken or OptionalToken, or "".
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func abort(c *gin.Context, err error) {
	status := http.StatusUnauthorized
	if service.KindOf(err) == service.KindInternal {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, gin.H{"error": service.MessageOf(err)})
}
