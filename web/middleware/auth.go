package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pwless/pwless/web/entity"
	"github.com/pwless/pwless/web/session"
)

// SessionRequired rejects requests whose visitor session holds no resolved
// identity.
func SessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.Authenticated(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, entity.Msg{
				Success: false,
				Msg:     "sign in required",
			})
			return
		}
		c.Next()
	}
}
