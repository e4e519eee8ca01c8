package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examhub/internal/model"
	"github.com/stemsi/examhub/internal/response"
)

// RequireRole lets the request through only for the given roles.
// Must run after RequireJWT or RequireWSAuth.
func RequireRole(code response.ErrCode, roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if !slices.Contains(roles, claims.Role) {
			response.AbortFail(c, http.StatusForbidden, code)
			return
		}
		c.Next()
	}
}

// RequireStudent restricts a route to students.
func RequireStudent() gin.HandlerFunc {
	return RequireRole(response.ErrStudentAccessOnly, model.RoleStudent)
}

// RequireAdmin restricts a route to center admins and super admins.
// Center scoping is checked by the services.
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(response.ErrAdminAccessOnly, model.RoleCenterAdmin, model.RoleSuperAdmin)
}

// RequireSuperAdmin restricts a route to super admins.
func RequireSuperAdmin() gin.HandlerFunc {
	return RequireRole(response.ErrSuperAdminOnly, model.RoleSuperAdmin)
}
