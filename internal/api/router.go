package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/okarlsson/waitgate/internal/auth"
	"github.com/okarlsson/waitgate/internal/cache"
	"github.com/okarlsson/waitgate/internal/handlers"
	"github.com/okarlsson/waitgate/internal/middleware"
	"github.com/okarlsson/waitgate/internal/ratelimit"
	"github.com/okarlsson/waitgate/internal/services"
	"github.com/okarlsson/waitgate/internal/waitlist"
)

// Deps carries the constructed infrastructure the router wires handlers onto.
type Deps struct {
	DB      *gorm.DB
	Cache   cache.Store
	JWT     *iauth.JWTService
	Limiter *ratelimit.Limiter
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("cache store must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Limiter == nil {
		return nil, fmt.Errorf("rate limiter must be provided")
	}

	ledger, err := waitlist.NewLedger(deps.DB)
	if err != nil {
		return nil, err
	}
	calculator, err := waitlist.NewCalculator(deps.DB)
	if err != nil {
		return nil, err
	}
	admission, err := waitlist.NewAdmission(deps.DB, ledger, calculator, deps.Limiter)
	if err != nil {
		return nil, err
	}

	projectService, err := services.NewProjectService(deps.DB)
	if err != nil {
		return nil, err
	}
	statsService, err := services.NewStatsService(deps.DB)
	if err != nil {
		return nil, err
	}
	exportService, err := services.NewExportService(deps.DB)
	if err != nil {
		return nil, err
	}
	userService, err := iauth.NewUserService(deps.DB)
	if err != nil {
		return nil, err
	}
	magicLinkService, err := iauth.NewMagicLinkService(deps.DB, deps.Cache)
	if err != nil {
		return nil, err
	}

	subscribeHandler, err := handlers.NewSubscribeHandler(admission)
	if err != nil {
		return nil, err
	}
	projectHandler, err := handlers.NewProjectHandler(projectService)
	if err != nil {
		return nil, err
	}
	entryHandler, err := handlers.NewEntryHandler(projectService, ledger, exportService)
	if err != nil {
		return nil, err
	}
	statsHandler, err := handlers.NewStatsHandler(projectService, statsService)
	if err != nil {
		return nil, err
	}
	publicHandler, err := handlers.NewPublicHandler(projectService)
	if err != nil {
		return nil, err
	}
	authHandler, err := handlers.NewAuthHandler(userService, magicLinkService, deps.JWT)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	r.NoRoute(middleware.NotFoundHandler)

	// Operational endpoints
	r.GET("/health", handlers.Health())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public surface: the join endpoint authenticates by project API key in
	// the payload and carries its own per-credential rate limit.
	r.POST("/api/subscribe", subscribeHandler.Subscribe)
	r.GET("/api/public/project/:slug", publicHandler.GetProject)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/magic-link", authHandler.RequestMagicLink)
		auth.POST("/magic-link/redeem", authHandler.RedeemMagicLink)
	}

	// Protected dashboard routes
	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	api.GET("/auth/me", authHandler.Me)

	projects := api.Group("/projects")
	{
		projects.GET("", projectHandler.List)
		projects.POST("", projectHandler.Create)
		projects.GET("/:id", projectHandler.Get)
		projects.PATCH("/:id", projectHandler.Update)
		projects.DELETE("/:id", projectHandler.Delete)
		projects.POST("/:id/rotate-key", projectHandler.RotateKey)

		projects.GET("/:id/entries", entryHandler.List)
		projects.DELETE("/:id/entries", entryHandler.Purge)
		projects.DELETE("/:id/entries/:entryId", entryHandler.Delete)
		projects.GET("/:id/export", entryHandler.Export)

		projects.GET("/:id/stats", statsHandler.Get)
	}

	return r, nil
}
