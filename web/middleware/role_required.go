package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pwless/pwless/authz"
	"github.com/pwless/pwless/web/entity"
	"github.com/pwless/pwless/web/session"
)

// RoleRequired gates a route group behind a role requirement. The identity is
// re-read from the visitor session on every request; nothing is cached
// between evaluations.
func RoleRequired(req authz.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.Authenticated(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, entity.Msg{
				Success: false,
				Msg:     "sign in required",
			})
			return
		}
		if !authz.Authorized(session.Current(c), req) {
			c.AbortWithStatusJSON(http.StatusForbidden, entity.Msg{
				Success: false,
				Msg:     "insufficient privileges",
			})
			return
		}
		c.Next()
	}
}
