package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Manzp111/Procured-Payment/internal/models"
)

// Principal is the authenticated caller as reported by the upstream
// identity provider. The core treats the role as opaque input.
type Principal struct {
	ID   uuid.UUID
	Role models.Role
}

const principalKey = "principal"

var knownRoles = map[models.Role]bool{
	models.RoleStaff:          true,
	models.RoleManager:        true,
	models.RoleGeneralManager: true,
	models.RoleFinance:        true,
	models.RoleAdmin:          true,
}

// Identity reads the principal injected by the auth layer in front of
// this service (X-User-ID / X-User-Role). Requests without a valid
// principal are rejected before reaching any handler.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader("X-User-ID"))
		if err != nil {
			respond(c, http.StatusUnauthorized, false, "missing or invalid user identity", nil)
			c.Abort()
			return
		}
		role := models.Role(c.GetHeader("X-User-Role"))
		if !knownRoles[role] {
			respond(c, http.StatusUnauthorized, false, "missing or invalid user role", nil)
			c.Abort()
			return
		}
		c.Set(principalKey, Principal{ID: id, Role: role})
		c.Next()
	}
}

// RequireRoles gates a route to the listed roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if !allowed[currentPrincipal(c).Role] {
			respond(c, http.StatusForbidden, false, "you do not have permission to perform this action", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentPrincipal(c *gin.Context) Principal {
	p, _ := c.Get(principalKey)
	principal, _ := p.(Principal)
	return principal
}
