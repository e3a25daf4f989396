// Package web provides the HTTP server of pwless: routing, the cookie-backed
// visitor sessions and the auth and admin surfaces.
package web

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/pwless/pwless/authz"
	"github.com/pwless/pwless/config"
	"github.com/pwless/pwless/database/model"
	"github.com/pwless/pwless/logger"
	"github.com/pwless/pwless/provider"
	"github.com/pwless/pwless/util/common"
	"github.com/pwless/pwless/util/random"
	"github.com/pwless/pwless/web/cache"
	"github.com/pwless/pwless/web/controller"
	"github.com/pwless/pwless/web/middleware"
	"github.com/pwless/pwless/web/service"
	"github.com/pwless/pwless/web/session"
)

// Server is the pwless web server. Auth routes are public, admin routes sit
// behind an authenticated session with the admin role.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	cfg      *config.Config
	provider provider.Client

	auth  *controller.AuthController
	admin *controller.AdminController

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a web server for the given configuration and provider
// client.
func NewServer(cfg *config.Config, client provider.Client) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{cfg: cfg, provider: client, ctx: ctx, cancel: cancel}
}

func (s *Server) basePath() string {
	basePath := s.cfg.Web.BasePath
	if basePath == "" {
		return "/"
	}
	if !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	return basePath
}

// initRouter initializes Gin, registers the session middleware and the route
// groups, and returns the configured engine.
func (s *Server) initRouter() (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()

	secret := s.cfg.Web.SessionSecret
	if secret == "" {
		// Sessions do not survive a restart without a configured secret.
		secret = random.Seq(32)
		logger.Warning("no session secret configured, sessions will not survive restarts")
	}
	var store sessions.Store
	if s.cfg.Web.RedisAddr != "" {
		redisStore, err := cache.NewRedisStore(s.cfg.Web.RedisAddr, []byte(secret))
		if err != nil {
			return nil, err
		}
		store = redisStore
	} else {
		store = cookie.NewStore([]byte(secret))
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   s.cfg.Web.SessionMaxAge,
		HttpOnly: true,
	})
	engine.Use(sessions.Sessions(session.SessionName, store))

	g := engine.Group(s.basePath())

	g.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	authService := service.NewAuthService(s.provider, s.cfg.Provider.PreAuthorized)
	s.auth = controller.NewAuthController(g, authService, s.cfg.Web.SessionMaxAge)

	adminGroup := g.Group("/admin")
	adminGroup.Use(middleware.SessionRequired())
	adminGroup.Use(middleware.RoleRequired(authz.RequireRole(model.RoleAdmin)))
	s.admin = controller.NewAdminController(adminGroup,
		service.NewUserService(s.provider), service.NewRoleService())

	engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusNotFound)
	})

	return engine, nil
}

// Start binds the listener and serves until Stop is called.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	listenAddr := net.JoinHostPort(s.cfg.Web.Listen, strconv.Itoa(s.cfg.Web.Port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	logger.Info("web server running on", listener.Addr())

	s.listener = listener
	s.httpServer = &http.Server{Handler: engine}

	go func() {
		defer common.Recover("web server crashed")
		_ = s.httpServer.Serve(listener)
	}()

	return nil
}

// Stop gracefully shuts down the web server.
func (s *Server) Stop() error {
	s.cancel()
	var err1, err2 error
	if s.httpServer != nil {
		err1 = s.httpServer.Shutdown(s.ctx)
	}
	if s.listener != nil {
		err2 = s.listener.Close()
	}
	return common.Combine(err1, err2)
}

// GetCtx returns the server's context.
func (s *Server) GetCtx() context.Context { return s.ctx }
