package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pwless/pwless/database/repo"
	"github.com/pwless/pwless/logger"
	"github.com/pwless/pwless/web/service"
	"github.com/pwless/pwless/web/session"
)

// AdminController exposes user, role and custom-role administration plus the
// in-memory log buffer.
type AdminController struct {
	userService *service.UserService
	roleService *service.RoleService
}

func NewAdminController(g *gin.RouterGroup, userService *service.UserService, roleService *service.RoleService) *AdminController {
	a := &AdminController{
		userService: userService,
		roleService: roleService,
	}
	a.initRouter(g)
	return a
}

func (a *AdminController) initRouter(g *gin.RouterGroup) {
	g.GET("/users", a.listUsers)
	g.POST("/users", a.createUser)
	g.GET("/users/:id", a.getUser)
	g.POST("/users/:id/update", a.updateUser)
	g.POST("/users/:id/delete", a.deleteUser)
	g.POST("/users/:id/emails", a.addEmail)
	g.POST("/users/:id/emails/:emailId/delete", a.deleteEmail)
	g.GET("/users/:id/signins", a.signInHistory)
	g.GET("/users/:id/credentials", a.credentials)
	g.POST("/users/:id/aliases", a.updateAliases)

	g.GET("/roles", a.listRoles)
	g.GET("/customRoles", a.listCustomRoles)
	g.POST("/customRoles", a.createCustomRole)
	g.POST("/customRoles/:id/rename", a.renameCustomRole)
	g.POST("/users/:id/customRoles/assign", a.assignCustomRoles)
	g.POST("/users/:id/customRoles/remove", a.removeCustomRole)

	g.GET("/logs", a.getLogs)
}

func (a *AdminController) listUsers(c *gin.Context) {
	filter := repo.UserFilter{Username: c.Query("username")}
	switch c.Query("disabled") {
	case "true":
		filter.Disabled = repo.Bool(true)
	case "false":
		filter.Disabled = repo.Bool(false)
	}
	users, err := a.userService.ListUsers(filter, repo.LoadOptions{CustomRoles: true, Emails: true})
	if err != nil {
		jsonMsg(c, "list users", err)
		return
	}
	jsonObj(c, users, nil)
}

// CreateUserForm is the admin-side user creation payload. Created users are
// pre-authorized: they exist before their first passkey ceremony.
type CreateUserForm struct {
	Username      string  `json:"username" form:"username"`
	DisplayName   string  `json:"displayName" form:"displayName"`
	Email         string  `json:"email" form:"email"`
	Role          string  `json:"role" form:"role"`
	CustomRoleIDs []int64 `json:"customRoleIds" form:"customRoleIds"`
}

func (a *AdminController) createUser(c *gin.Context) {
	var form CreateUserForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, "invalid user form")
		return
	}
	admin := session.CurrentUser(c)
	user, err := a.userService.CreateUser(service.CreateUserParams{
		Username:      form.Username,
		DisplayName:   form.DisplayName,
		Email:         form.Email,
		RoleName:      form.Role,
		CustomRoleIDs: form.CustomRoleIDs,
		CreatedBy:     admin.Username,
	})
	if err != nil {
		bannerError(c, err)
		return
	}
	jsonObj(c, user, nil)
}

func (a *AdminController) getUser(c *gin.Context) {
	user, err := a.userService.GetUser(repo.UserFilter{ID: c.Param("id")},
		repo.LoadOptions{CustomRoles: true, Emails: true, SignIns: true})
	if err != nil {
		jsonMsg(c, "get user", err)
		return
	}
	if user == nil {
		pureJsonMsg(c, http.StatusNotFound, false, "user not found")
		return
	}
	jsonObj(c, user, nil)
}

// UpdateUserForm carries a partial user update. Absent fields stay untouched.
type UpdateUserForm struct {
	DisplayName *string `json:"displayName" form:"displayName"`
	Role        *string `json:"role" form:"role"`
	Disabled    *bool   `json:"disabled" form:"disabled"`
}

func (a *AdminController) updateUser(c *gin.Context) {
	var form UpdateUserForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, "invalid update form")
		return
	}
	admin := session.CurrentUser(c)
	user, err := a.userService.UpdateUser(c.Param("id"), service.UpdateUserParams{
		DisplayName: form.DisplayName,
		RoleName:    form.Role,
		Disabled:    form.Disabled,
		UpdatedBy:   admin.Username,
	})
	if err != nil {
		bannerError(c, err)
		return
	}
	jsonObj(c, user, nil)
}

func (a *AdminController) deleteUser(c *gin.Context) {
	err := a.userService.DeleteUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		bannerError(c, err)
		return
	}
	jsonMsg(c, "user deleted", nil)
}

// EmailForm attaches an additional address to a user.
type EmailForm struct {
	Address string `json:"address" form:"address"`
	Rank    int    `json:"rank" form:"rank"`
}

func (a *AdminController) addEmail(c *gin.Context) {
	var form EmailForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, "invalid email form")
		return
	}
	email, err := a.userService.AddEmail(c.Param("id"), form.Address, form.Rank)
	if err != nil {
		bannerError(c, err)
		return
	}
	jsonObj(c, email, nil)
}

func (a *AdminController) deleteEmail(c *gin.Context) {
	emailID, err := strconv.ParseInt(c.Param("emailId"), 10, 64)
	if err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, "invalid email id")
		return
	}
	if err := a.userService.DeleteEmail(c.Param("id"), emailID); err != nil {
		bannerError(c, err)
		return
	}
	jsonMsg(c, "email deleted", nil)
}

func (a *AdminController) signInHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	signIns, err := a.userService.SignInHistory(c.Param("id"), limit)
	if err != nil {
		jsonMsg(c, "list sign-ins", err)
		return
	}
	jsonObj(c, signIns, nil)
}

func (a *AdminController) credentials(c *gin.Context) {
	creds, err := a.userService.Credentials(c.Request.Context(), c.Param("id"))
	if err != nil {
		bannerError(c, err)
		return
	}
	jsonObj(c, creds, nil)
}

// AliasesForm replaces the sign-in aliases of a user. Aliases are held by the
// passkey provider, not locally.
type AliasesForm struct {
	Aliases string `json:"aliases" form:"aliases"`
}

func (a *AdminController) updateAliases(c *gin.Context) {
	var form AliasesForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, "invalid aliases form")
		return
	}
	aliases := service.SplitAliases(form.Aliases)
	if err := a.userService.UpdateAliases(c.Request.Context(), c.Param("id"), aliases); err != nil {
		bannerError(c, err)
		return
	}
	jsonMsg(c, "aliases updated", nil)
}

// listRoles serves the role list from the session cache when present and
// refreshes the cache otherwise.
func (a *AdminController) listRoles(c *gin.Context) {
	if roles := session.CachedRoles(c); roles != nil && c.Query("refresh") == "" {
		jsonObj(c, roles, nil)
		return
	}
	roles, err := a.roleService.ListRoles()
	if err != nil {
		jsonMsg(c, "list roles", err)
		return
	}
	if err := session.SetCachedRoles(c, roles); err != nil {
		logger.Warning("failed to cache roles: ", err)
	}
	jsonObj(c, roles, nil)
}

func (a *AdminController) listCustomRoles(c *gin.Context) {
	if roles := session.CachedCustomRoles(c); roles != nil && c.Query("refresh") == "" {
		jsonObj(c, roles, nil)
		return
	}
	roles, err := a.roleService.ListCustomRoles()
	if err != nil {
		jsonMsg(c, "list custom roles", err)
		return
	}
	if err := session.SetCachedCustomRoles(c, roles); err != nil {
		logger.Warning("failed to cache custom roles: ", err)
	}
	jsonObj(c, roles, nil)
}

// CustomRoleForm creates an application-defined role.
type CustomRoleForm struct {
	Name        string `json:"name" form:"name"`
	Rank        int    `json:"rank" form:"rank"`
	Description string `json:"description" form:"description"`
}

func (a *AdminController) createCustomRole(c *gin.Context) {
	var form CustomRoleForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, "invalid custom role form")
		return
	}
	role, err := a.roleService.CreateCustomRole(form.Name, form.Rank, form.Description)
	if err != nil {
		bannerError(c, err)
		return
	}
	jsonObj(c, role, nil)
}

// RenameForm renames a custom role. The stable id keeps assignments intact.
type RenameForm struct {
	Name string `json:"name" form:"name"`
}

func (a *AdminController) renameCustomRole(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, "invalid custom role id")
		return
	}
	var form RenameForm
	if err := c.ShouldBind(&form); err != nil || form.Name == "" {
		pureJsonMsg(c, http.StatusBadRequest, false, "missing custom role name")
		return
	}
	if err := a.roleService.RenameCustomRole(id, form.Name); err != nil {
		bannerError(c, err)
		return
	}
	jsonMsg(c, "custom role renamed", nil)
}

// CustomRoleIDsForm names custom roles by their stable ids.
type CustomRoleIDsForm struct {
	RoleIDs []int64 `json:"roleIds" form:"roleIds"`
}

func (a *AdminController) assignCustomRoles(c *gin.Context) {
	var form CustomRoleIDsForm
	if err := c.ShouldBind(&form); err != nil || len(form.RoleIDs) == 0 {
		pureJsonMsg(c, http.StatusBadRequest, false, "missing custom role ids")
		return
	}
	if err := a.roleService.AssignCustomRoles(c.Param("id"), form.RoleIDs...); err != nil {
		bannerError(c, err)
		return
	}
	jsonMsg(c, "custom roles assigned", nil)
}

func (a *AdminController) removeCustomRole(c *gin.Context) {
	var form CustomRoleIDsForm
	if err := c.ShouldBind(&form); err != nil || len(form.RoleIDs) != 1 {
		pureJsonMsg(c, http.StatusBadRequest, false, "exactly one custom role id required")
		return
	}
	if err := a.roleService.RemoveCustomRole(c.Param("id"), form.RoleIDs[0]); err != nil {
		bannerError(c, err)
		return
	}
	jsonMsg(c, "custom role removed", nil)
}

func (a *AdminController) getLogs(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "100"))
	if err != nil || count < 1 {
		count = 100
	}
	level := c.DefaultQuery("level", "info")
	jsonObj(c, logger.GetLogs(count, level), nil)
}
