package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"

	"github.com/janburzinski/notra/internal/http/handler"
	"github.com/janburzinski/notra/internal/http/middleware"
	"github.com/janburzinski/notra/internal/metrics"
	"github.com/janburzinski/notra/internal/service"
)

const healthcheckRatePrefix = "ratelimit:healthcheck"

type RouterConfig struct {
	WorkflowSecret  string
	TraceHeaderName string
	CommitSHA       string
	// Limiter backs the public healthcheck. Nil disables rate limiting.
	Limiter middleware.Limiter
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	Register(router, Handlers{
		Workflows:   handler.NewWorkflowHandler(services.Starter()),
		ManualRuns:  handler.NewManualRunHandler(services.ManualRuns()),
		Webhooks:    handler.NewGitHubWebhookHandler(services.Webhooks()),
		Healthcheck: handler.NewHealthHandler(cfg.CommitSHA),
	}, cfg)
}

type Handlers struct {
	Workflows   *handler.WorkflowHandler
	ManualRuns  *handler.ManualRunHandler
	Webhooks    *handler.GitHubWebhookHandler
	Healthcheck *handler.HealthHandler
}

// Register mounts every route on router.
func Register(router *gin.Engine, h Handlers, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	api.Use(middleware.TraceHeader(cfg.TraceHeaderName))
	{
		health := []gin.HandlerFunc{}
		if cfg.Limiter != nil {
			health = append(health, middleware.RateLimit(cfg.Limiter, redis_rate.PerMinute(2), healthcheckRatePrefix))
		}
		api.GET("/healthcheck", append(health, h.Healthcheck.Healthcheck)...)

		WorkflowRouter(api.Group("/workflows", middleware.RequireBearer(cfg.WorkflowSecret)), h.Workflows)

		orgs := api.Group("/organizations/:organizationId", middleware.RequireUserID())
		AutomationRouter(orgs.Group("/automation"), h.ManualRuns)

		WebhookRouter(api.Group("/webhooks"), h.Webhooks)
	}
}
