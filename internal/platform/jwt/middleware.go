// Package jwtmw guards the /v1 routes with HMAC-signed bearer tokens.
// Tokens are issued by the external auth service; this package only verifies them.
package jwtmw

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextSubject is the gin context key holding the token subject.
const ContextSubject = "subject"

var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// AuthRequired returns a Gin middleware function that validates JWT tokens
// and restricts access to authenticated callers only.
// An empty secret is a server misconfiguration and fails every request with 500.
func AuthRequired(secret string) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods(hmacMethods), jwt.WithExpirationRequired())

	return func(c *gin.Context) {
		// 1. Get Authorization header
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimPrefix(auth, "Bearer ")

		if secret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server misconfigured"})
			return
		}

		// 2. Parse and verify JWT signature (HMAC only, exp required)
		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		// 3. Extract subject
		if sub, ok := subject(claims); ok {
			c.Set(ContextSubject, sub)
		}
		c.Next()
	}
}

// subject accepts both string subjects and the numeric user ids older issuers emit.
func subject(claims jwt.MapClaims) (string, bool) {
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, true
	}
	if n, ok := claims["sub"].(float64); ok && n >= 0 { // JWT numbers are decoded as float64
		return strconv.FormatUint(uint64(n), 10), true
	}
	return "", false
}
