package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hris-discipline-api/internal/models"
	appErrors "github.com/noah-isme/hris-discipline-api/pkg/errors"
	"github.com/noah-isme/hris-discipline-api/pkg/response"
)

// RoleChecker is a set of roles admitted by a route.
type RoleChecker interface {
	Has(role models.UserRole) bool
	String() string
}

// RBAC gates a route on the role carried by the token. It is only an early
// filter: services re-resolve the actor's role against the directory.
func RBAC(allowed ...models.UserRole) gin.HandlerFunc {
	return RequireRoles(roleList(allowed))
}

// RequireRoles gates on a role set such as service.HRRoles.
func RequireRoles(roles RoleChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !roles.Has(claims.Role) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not do this, requires one of: %s", claims.Role, roles)))
			c.Abort()
			return
		}
		c.Next()
	}
}

type roleList []models.UserRole

func (l roleList) Has(role models.UserRole) bool {
	for _, r := range l {
		if r == role {
			return true
		}
	}
	return false
}

func (l roleList) String() string {
	return fmt.Sprint([]models.UserRole(l))
}
