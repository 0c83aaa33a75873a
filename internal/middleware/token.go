package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextTokenKey is the gin context key storing the presented token value.
const ContextTokenKey = "apiToken"

// TokenQueryParam is the query parameter accepted in place of the header.
const TokenQueryParam = "token"

// Token extracts the capability token from header, or from the token query
// parameter when allowQuery is set. It never rejects a request: handlers
// decide what an absent token means.
func Token(header string, allowQuery bool) gin.HandlerFunc {
	if header == "" {
		header = "Authorization"
	}
	return func(c *gin.Context) {
		value := strings.TrimSpace(c.GetHeader(header))
		if parts := strings.SplitN(value, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			value = strings.TrimSpace(parts[1])
		}
		if value == "" && allowQuery {
			value = strings.TrimSpace(c.Query(TokenQueryParam))
		}
		if value != "" {
			c.Set(ContextTokenKey, value)
		}
		c.Next()
	}
}

// TokenFromContext returns the token stored by Token, or "".
func TokenFromContext(c *gin.Context) string {
	return c.GetString(ContextTokenKey)
}
