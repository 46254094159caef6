// README: Actor role extraction from the X-Actor-Role header.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"angierens/internal/modules/order"
)

const ActorRoleKey = "actor_role"

var validRoles = map[order.Role]bool{
	order.RoleCustomer: true,
	order.RoleKitchen:  true,
	order.RoleAdmin:    true,
	order.RoleRider:    true,
}

// Actor resolves the caller's role. Requests without a header default to
// customer; an unknown role is rejected up front so the transition table
// never sees garbage actors.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := order.Role(c.GetHeader("X-Actor-Role"))
		if role == "" {
			role = order.RoleCustomer
		}
		if !validRoles[role] {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown actor role"})
			return
		}
		c.Set(ActorRoleKey, role)
		c.Next()
	}
}

// RoleOf reads the resolved role off the request context.
func RoleOf(c *gin.Context) order.Role {
	if v, ok := c.Get(ActorRoleKey); ok {
		if role, ok := v.(order.Role); ok {
			return role
		}
	}
	return order.RoleCustomer
}

// RequireRole rejects requests whose resolved role is not in the allow list.
func RequireRole(roles ...order.Role) gin.HandlerFunc {
	allowed := make(map[order.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if !allowed[RoleOf(c)] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role not allowed"})
			return
		}
		c.Next()
	}
}
