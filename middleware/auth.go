package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nanakusa/questward/cache"
	"github.com/nanakusa/questward/config"
)

const AccountIDKey = "account_id"

// SessionKey returns the cache key a token's session lives under.
func SessionKey(token string) string {
	return "session:" + token
}

// BearerToken extracts the token from the Authorization header, or ""
// when the header is absent or malformed.
func BearerToken(c *gin.Context) string {
	const prefix = "Bearer "
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return header[len(prefix):]
}

// Auth guards a route group: the request must carry a valid JWT whose
// session is still present in the cache (i.e. not logged out or revoked).
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := BearerToken(ctx)
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := ParseToken(token, sec.JWTSecret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		alive, err := c.Exists(cacheCtx, SessionKey(token))
		if err != nil || !alive {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		ctx.Set(AccountIDKey, claims.AccountID)
		ctx.Next()
	}
}

// GetAccountID returns the authenticated account's ID, or 0 outside an
// authenticated request.
func GetAccountID(c *gin.Context) int64 {
	if v, ok := c.Get(AccountIDKey); ok {
		return v.(int64)
	}
	return 0
}
