package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/equigive/equigive/internal/auth"
	"github.com/equigive/equigive/internal/ledger"
)

// callerKey is the gin context key holding the authenticated caller address.
const callerKey = "custody.caller"

// RequireCaller returns a middleware that authenticates the request's
// bearer token and stores the caller's ledger address in the context.
// Requests without a valid token are rejected with 401 before reaching any
// handler; authorization proper happens later, inside the core.
func RequireCaller(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := issuer.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
			return
		}
		c.Set(callerKey, ledger.Address(claims.Address))
		c.Next()
	}
}

// callerFrom returns the authenticated caller address set by RequireCaller.
func callerFrom(c *gin.Context) ledger.Address {
	v, _ := c.Get(callerKey)
	addr, _ := v.(ledger.Address)
	return addr
}
