package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"meal2list/internal/api/handlers/generation"
	"meal2list/internal/api/handlers/health"
	listHandler "meal2list/internal/api/handlers/list"
	"meal2list/internal/api/middleware"
	"meal2list/internal/core/acquire"
	"meal2list/internal/core/ai"
	"meal2list/internal/core/commit"
	"meal2list/internal/core/generate"
	"meal2list/internal/core/ratelimit"
	"meal2list/internal/core/robots"
	"meal2list/internal/core/session"
	"meal2list/internal/infrastructure/config"
	"meal2list/internal/pkg/common"
	"meal2list/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	requestTimeout = 120 * time.Second
	maxBodySize    = 10 << 20
)

// SetupRouter wires all services and registers the HTTP surface
func SetupRouter(cfg *config.Config, db *sqlx.DB, sessions *session.Manager) (*gin.Engine, error) {
	common.LogInfo("starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", middleware.UserIDHeader},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(maxBodySize))

	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}

	var cache *redis.Client
	if cfg.Cache.Enabled {
		cache = redis.NewClient(&redis.Options{Addr: cfg.Cache.Addr})
		if err := cache.Ping(context.Background()).Err(); err != nil {
			common.LogWarn("redis unreachable, robots cache disabled",
				zap.String("addr", cfg.Cache.Addr),
				zap.Error(err),
			)
			cache = nil
		}
	}

	store := storage.NewStore(db)
	relay := ai.NewClient(cfg)

	limiter := ratelimit.NewLimiter(cfg.DomainLimit.Window, cfg.DomainLimit.MaxRequests, cfg.DomainLimit.MinSpacing)
	checker := robots.NewChecker(cfg, cache)

	textAdapter := acquire.NewTextAdapter(common.MaxRecipeTextLength)
	scrapeAdapter := acquire.NewScrapeAdapter(cfg, limiter, checker)
	imageAdapter := acquire.NewImageAdapter(cfg, relay)

	generator := generate.NewService(cfg, relay, store)
	committer := commit.NewPipeline(store)

	if generator == nil || committer == nil {
		return nil, fmt.Errorf("failed to initialize core services")
	}

	common.LogInfo("services initialized",
		zap.Bool("cache_enabled", cache != nil),
		zap.String("text_model", cfg.Relay.TextModel),
		zap.String("vision_model", cfg.Relay.VisionModel),
		zap.Duration("request_timeout", requestTimeout),
	)

	// per-request deadline
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Set("debug", cfg.App.Debug)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, common.ErrorResponse{
				Code:    common.ErrCodeRequestTimeout,
				Message: "request timed out",
			})
		}
	})

	healthHandler := health.NewHandler(cfg.App.Version, db, sessions)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Readiness)
	router.GET("/live", healthHandler.Liveness)

	api := router.Group("/api/v1")
	api.Use(middleware.Identity(store))
	{
		lists := listHandler.NewHandler(store)
		api.GET("/categories", lists.GetCategories)
		api.GET("/lists", lists.GetLists)
		api.POST("/lists", lists.CreateList)
		api.DELETE("/lists/:id", lists.DeleteList)
		api.GET("/lists/:id/items", lists.GetListItems)

		gen := generation.NewHandler(sessions, textAdapter, scrapeAdapter, imageAdapter, generator, store, committer)
		sessionGroup := api.Group("/sessions")
		{
			sessionGroup.POST("", gen.CreateSession)
			sessionGroup.GET("/:id", gen.GetSession)
			sessionGroup.POST("/:id/source", gen.SelectSource)
			sessionGroup.PUT("/:id/text", gen.PutText)
			sessionGroup.POST("/:id/scrape", gen.Scrape)
			sessionGroup.POST("/:id/image", gen.UploadImage)

			sessionGroup.POST("/:id/generate", middleware.Deduplication(time.Second), gen.Generate)

			sessionGroup.GET("/:id/items", gen.GetItems)
			sessionGroup.GET("/:id/items/grouped", gen.GetGroupedItems)
			sessionGroup.POST("/:id/items/toggle-all", gen.ToggleAll)
			sessionGroup.POST("/:id/items/:itemId/toggle", gen.ToggleItem)
			sessionGroup.POST("/:id/items/:itemId/edit", gen.BeginEdit)
			sessionGroup.PUT("/:id/items/:itemId/edit", gen.UpdateDraft)
			sessionGroup.POST("/:id/items/:itemId/edit/commit", gen.CommitEdit)
			sessionGroup.POST("/:id/items/:itemId/edit/cancel", gen.CancelEdit)

			sessionGroup.GET("/:id/validate", gen.Validate)
			sessionGroup.POST("/:id/commit", gen.Commit)
		}
	}

	common.LogInfo("router setup completed")
	return router, nil
}
