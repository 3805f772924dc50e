// Package router assembles the echo server: global middleware, the session
// layer and every route.
package router

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/myblog/internal/adminsession"
	"github.com/iliyamo/myblog/internal/audit"
	"github.com/iliyamo/myblog/internal/backend"
	"github.com/iliyamo/myblog/internal/config"
	"github.com/iliyamo/myblog/internal/handler"
	"github.com/iliyamo/myblog/internal/middleware"
	"github.com/iliyamo/myblog/internal/provider"
	"github.com/iliyamo/myblog/internal/repository"
	"github.com/iliyamo/myblog/internal/session"
)

// Services are the long-lived dependencies built by main.
type Services struct {
	DB        *sql.DB
	Gateway   *provider.Gateway
	Redis     *redis.Client // nil disables rate limiting and caching
	Publisher handler.InquiryPublisher
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Logger    zerolog.Logger
	Audit     *audit.Logger // nil keeps no fallback trail
}

// New builds the echo instance with all routes registered.
func New(cfg config.Config, s Services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(cfg.IsProduction())

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.ContextLogger(s.Logger))
	e.Use(middleware.RequestLogger(s.Logger))
	e.Use(echomw.BodyLimit(bodyLimit(cfg)))

	prod := cfg.IsProduction()
	signer := adminsession.NewSigner(cfg.AdminSessionSecret)
	cookies := session.CookieOptions{Secure: prod, Domain: cfg.CookieDomain}
	allowUnsigned := !prod && cfg.AllowUnsignedAdminSession
	if allowUnsigned && adminsession.UnsignedCompiled {
		s.Logger.Warn().Msg("unsigned admin-session tokens are ACCEPTED (devsession build)")
	}
	if cfg.AllowServiceRoleFallback {
		s.Logger.Warn().Msg("ALLOW_SERVICE_ROLE_FALLBACK is on: writes without a session use the service-role client")
	}
	resolver := session.NewResolver(s.Gateway, signer, session.Options{
		Cookies:       cookies,
		AdminEmails:   cfg.AdminEmails,
		RefreshGrace:  cfg.RefreshGrace,
		AllowUnsigned: allowUnsigned,
	})

	repos := backend.Repos{
		Posts:     repository.NewPostRepo(s.DB),
		Comments:  repository.NewCommentRepo(s.DB),
		Inquiries: repository.NewInquiryRepo(s.DB),
	}
	clients := handler.Clients{
		Factory:       backend.NewFactory(s.Gateway, repos, s.Gateway.HasServiceRoleKey(), cfg.AdminEmails, cfg.BcryptCost),
		AllowFallback: cfg.AllowServiceRoleFallback,
		Audit:         s.Audit,
	}

	h := handlers{
		auth:      handler.NewAuthHandler(cfg, s.Gateway, signer, cookies),
		posts:     handler.NewPostHandler(clients, purger(s), prod),
		comments:  handler.NewCommentHandler(clients, prod, cfg.CommentCleanupSecret),
		inquiries: handler.NewInquiryHandler(clients, s.Publisher, prod),
		upload:    handler.NewUploadHandler(clients, cfg.UploadDir, cfg.UploadPublicPrefix, cfg.UploadMaxBytes, prod),
		theme:     handler.ThemeHandler{Cookies: cookies},
		debug:     &handler.DebugHandler{Cfg: cfg, Signer: signer, Cookies: cookies},
	}

	e.GET("/healthz", handler.Health(s.DB))
	e.Static(cfg.UploadPublicPrefix, cfg.UploadDir)

	sessionMW := middleware.Session(resolver)
	api := e.Group("/api", sessionMW)
	registerPublic(api, h, middleware.NewTokenBucket(s.RateLimit, s.Redis), middleware.NewRedisCache(s.Cache, s.Redis))
	registerAdmin(api, h)
	if cfg.DebugRoutes && !prod {
		registerDebug(api, h)
	}
	registerAdminPages(e, cfg.AdminStaticDir, sessionMW)
	return e
}

type handlers struct {
	auth      *handler.AuthHandler
	posts     *handler.PostHandler
	comments  *handler.CommentHandler
	inquiries *handler.InquiryHandler
	upload    *handler.UploadHandler
	theme     handler.ThemeHandler
	debug     *handler.DebugHandler
}

// purger avoids storing a typed nil in the handler's interface field.
func purger(s Services) handler.CachePurger {
	if p := middleware.NewCachePurger(s.Cache, s.Redis); p != nil {
		return p
	}
	return nil
}

// bodyLimit leaves room for multipart overhead on top of the upload limit.
func bodyLimit(cfg config.Config) string {
	return fmt.Sprintf("%dM", cfg.UploadMaxBytes>>20+1)
}
