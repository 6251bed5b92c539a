package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/pkg/response"
)

// RequireRole lets through requests whose JWT role is one of roles. It must
// run after JWT.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if _, ok := c.Get(ContextUserRole); !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if !allowed[models.Role(c.GetString(ContextUserRole))] {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminOnly guards the dashboard routes: JWT followed by RequireRole(admin).
func AdminOnly(tokens TokenValidator) []gin.HandlerFunc {
	return []gin.HandlerFunc{JWT(tokens), RequireRole(models.RoleAdmin)}
}
