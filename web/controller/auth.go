// Package controller provides the HTTP handlers of the pwless auth and admin
// surface.
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pwless/pwless/logger"
	"github.com/pwless/pwless/web/entity"
	"github.com/pwless/pwless/web/service"
	"github.com/pwless/pwless/web/session"
)

// AuthController exposes the passkey register and sign-in ceremonies.
type AuthController struct {
	authService   *service.AuthService
	sessionMaxAge int
}

func NewAuthController(g *gin.RouterGroup, authService *service.AuthService, sessionMaxAge int) *AuthController {
	a := &AuthController{authService: authService, sessionMaxAge: sessionMaxAge}
	a.initRouter(g)
	return a
}

// refreshLifetime restarts the session cookie lifetime after an identity is
// established, so the signed-in period counts from the ceremony and not from
// the first anonymous visit.
func (a *AuthController) refreshLifetime(c *gin.Context) {
	if a.sessionMaxAge <= 0 {
		return
	}
	if err := session.SetMaxAge(c, a.sessionMaxAge); err != nil {
		logger.Warning("failed to refresh session lifetime: ", err)
	}
}

func (a *AuthController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/auth")

	g.POST("/register/begin", a.beginRegister)
	g.POST("/register/finish", a.finishRegister)
	g.POST("/signin/finish", a.finishSignIn)
	g.POST("/signout", a.signOut)
	g.GET("/me", a.me)
}

// RegisterForm is the user shape submitted before a register ceremony starts.
type RegisterForm struct {
	Username    string `json:"username" form:"username"`
	DisplayName string `json:"displayName" form:"displayName"`
	Email       string `json:"email" form:"email"`
	Aliases     string `json:"aliases" form:"aliases"`
}

// TokenForm carries the ceremony token handed back by the browser.
type TokenForm struct {
	Token string `json:"token" form:"token"`
}

func (a *AuthController) beginRegister(c *gin.Context) {
	var form RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, "invalid register form")
		return
	}

	pending := service.PendingRegistration{
		Username:    form.Username,
		DisplayName: form.DisplayName,
		Email:       form.Email,
		Aliases:     service.SplitAliases(form.Aliases),
	}
	token, err := a.authService.BeginRegistration(c.Request.Context(), &pending)
	if err != nil {
		bannerError(c, err)
		return
	}
	if err := session.SetPendingRegistration(c, &pending); err != nil {
		jsonMsg(c, "store pending registration", err)
		return
	}
	logger.Debugf("issued register token for user %s from %s", pending.Username, getRemoteIp(c))
	jsonObj(c, map[string]string{"registerToken": token}, nil)
}

func (a *AuthController) finishRegister(c *gin.Context) {
	var form TokenForm
	if err := c.ShouldBind(&form); err != nil || form.Token == "" {
		pureJsonMsg(c, http.StatusBadRequest, false, "missing ceremony token")
		return
	}
	pending := session.PendingRegistration(c)
	if pending == nil {
		pureJsonMsg(c, http.StatusBadRequest, false, "no registration in progress")
		return
	}

	user, signIn, err := a.authService.FinishRegistration(c.Request.Context(), form.Token, *pending)
	if err != nil {
		bannerError(c, err)
		return
	}
	if err := session.ClearPendingRegistration(c); err != nil {
		jsonMsg(c, "clear pending registration", err)
		return
	}
	if err := session.SetCurrentUser(c, user, signIn); err != nil {
		jsonMsg(c, "save session", err)
		return
	}
	a.refreshLifetime(c)
	jsonObj(c, user, nil)
}

func (a *AuthController) finishSignIn(c *gin.Context) {
	var form TokenForm
	if err := c.ShouldBind(&form); err != nil || form.Token == "" {
		pureJsonMsg(c, http.StatusBadRequest, false, "missing ceremony token")
		return
	}

	user, signIn, err := a.authService.SignIn(c.Request.Context(), form.Token)
	if err != nil {
		logger.Warningf("failed sign-in attempt from %s: %v", getRemoteIp(c), err)
		bannerError(c, err)
		return
	}
	if err := session.SetCurrentUser(c, user, signIn); err != nil {
		jsonMsg(c, "save session", err)
		return
	}
	a.refreshLifetime(c)
	logger.Infof("user %s signed in from %s", user.Username, getRemoteIp(c))
	jsonObj(c, user, nil)
}

func (a *AuthController) signOut(c *gin.Context) {
	user := session.CurrentUser(c)
	if err := session.SignOut(c); err != nil {
		jsonMsg(c, "sign out", err)
		return
	}
	if user != nil {
		logger.Infof("user %s signed out", user.Username)
	}
	jsonMsg(c, "signed out", nil)
}

// me reports the identity of this visitor session. Unauthenticated sessions
// get an empty success payload rather than an error, so pages can probe.
func (a *AuthController) me(c *gin.Context) {
	user := session.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusOK, entity.Msg{Success: true})
		return
	}
	jsonObj(c, map[string]any{
		"user":   user,
		"signIn": session.CurrentSignIn(c),
	}, nil)
}
