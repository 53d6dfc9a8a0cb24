// Package auth decides who may use the admin surface.
package auth

import (
	"net/http"
	"strings"

	"energy-store/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdentityHeader carries the authenticated e-mail, set by the gateway after login
const IdentityHeader = "X-Auth-Email"

const identityKey = "auth.identity"

// Authorizer checks identities against the configured admin allow-list
type Authorizer struct {
	allowed          map[string]struct{}
	requireAllowList bool
}

// NewAuthorizer builds an authorizer. With requireAllowList off every authenticated identity is admin.
func NewAuthorizer(emails []string, requireAllowList bool) *Authorizer {
	allowed := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if e = normalize(e); e != "" {
			allowed[e] = struct{}{}
		}
	}
	return &Authorizer{allowed: allowed, requireAllowList: requireAllowList}
}

func normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// IsAdmin reports whether the identity may manage the store
func (a *Authorizer) IsAdmin(identity string) bool {
	identity = normalize(identity)
	if identity == "" {
		return false
	}
	if !a.requireAllowList {
		return true
	}
	_, ok := a.allowed[identity]
	return ok
}

// RequireAdmin rejects requests without an identity (401) or without admin rights (403)
func (a *Authorizer) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := normalize(c.GetHeader(IdentityHeader))
		if identity == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !a.IsAdmin(identity) {
			util.GetLogger().Warn("Admin access denied", zap.String("identity", identity), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// Identity returns the identity stored by RequireAdmin
func Identity(c *gin.Context) string {
	return c.GetString(identityKey)
}
