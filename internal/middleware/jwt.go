package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/internal/auth"
	"github.com/xendao/governance/pkg/response"
)

// ContextCaller is the key for the authenticated caller identity in gin context.
const ContextCaller = "caller"

// JWT returns a middleware that validates the bearer token and sets the caller in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		caller, err := jwtService.ValidateCaller(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextCaller, caller)
		c.Next()
	}
}

// Caller returns the identity set by JWT. ok is false on unauthenticated routes.
func Caller(c *gin.Context) (caller address.Pubkey, ok bool) {
	v, exists := c.Get(ContextCaller)
	if !exists {
		return address.Pubkey{}, false
	}
	caller, ok = v.(address.Pubkey)
	return caller, ok
}
