package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/collegehub/internal/config"
	"github.com/geocoder89/collegehub/internal/http/handlers"
	"github.com/geocoder89/collegehub/internal/http/middlewares"
	"github.com/geocoder89/collegehub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "collegehub-api"

type Deps struct {
	Config   config.Config
	Accounts handlers.AccountService
	Tokens   middlewares.TokenVerifier

	// Ready backs /readyz. Nil means always ready.
	Ready func(ctx context.Context) error

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	// RateCounter defaults to an in-memory counter.
	RateCounter middlewares.WindowCounter
}

func NewRouter(log *slog.Logger, deps Deps) *gin.Engine {
	cfg := deps.Config

	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders(cfg.IsProd()))
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health
	h := handlers.NewHealthHandler(deps.Ready)
	r.GET("/", h.Root)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	counter := deps.RateCounter
	if counter == nil {
		counter = middlewares.NewMemoryCounter(time.Minute)
	}
	limiter := middlewares.NewRateLimiter(counter, cfg.RateLimitPerMinute, log)
	limit := limiter.RateLimiterMiddleware(middlewares.KeyByRouteAndIP)

	authMW := middlewares.NewAuthMiddleware(deps.Tokens)
	authHandler := handlers.NewAuthHandler(deps.Accounts, log)

	users := r.Group("/api/users")
	users.POST("/register", limit, authHandler.Register)
	users.POST("/login", limit, authHandler.Login)
	users.GET("/profile", authMW.RequireAuth(), authHandler.Profile)
	users.GET("/:id", authMW.RequireAuth(), authMW.RequireRole("admin"), authHandler.GetUser)

	return r
}
