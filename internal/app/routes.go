package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/replyflow/core/internal/middleware"
	automationmod "github.com/replyflow/core/internal/modules/automation"
	"github.com/replyflow/core/internal/modules/counters"
	followupmod "github.com/replyflow/core/internal/modules/followup"
	"github.com/replyflow/core/internal/modules/flowgraph"
	"github.com/replyflow/core/internal/modules/health"
	"github.com/replyflow/core/internal/modules/inbound"
	"github.com/replyflow/core/internal/modules/postback"
	"github.com/replyflow/core/internal/pkg/response"
)

const (
	apiPrefix = "/api/v1"

	// Dashboard writes are de-duplicated for this long after success.
	httpIdempotenceTTL = time.Minute
	// Requests per second and client IP on the ingestion endpoints.
	ingestRateLimit = 50
)

func (a *App) registerRoutes(s *services) {
	r := a.router
	authMW := middleware.Auth()

	r.NoRoute(response.NotFound)
	r.GET("/metrics", a.metrics.Handler())

	api := r.Group(apiPrefix)
	api.Use(middleware.Idempotence(a.rc.Raw(), httpIdempotenceTTL,
		apiPrefix+"/events",
		apiPrefix+"/postbacks/press",
	))

	api.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"name": "replyflow-core", "version": version})
	})
	api.GET("/uptime", func(c *gin.Context) {
		up := time.Since(a.started)
		c.JSON(http.StatusOK, gin.H{"timestamp": up.Milliseconds(), "humanize": humanizeDuration(up)})
	})
	health.RegisterRoutes(api, a.db, a.rc, a.sched, authMW)

	// Dashboard
	automationmod.NewHandler(s.automations).RegisterRoutes(api, authMW)
	followupmod.NewHandler(s.followups, s.automations).RegisterRoutes(api, authMW)
	flowgraph.NewHandler(s.flows, s.automations).RegisterRoutes(api, authMW)
	postback.NewHandler(s.postbacks).RegisterRoutes(api, authMW)
	counters.NewHandler(s.counters).RegisterRoutes(api, authMW)

	// Ingestion
	inbound.NewHandler(s.inbound).RegisterRoutes(api,
		middleware.IngestAuth(a.cfg.IngestToken),
		middleware.RateLimit(a.rc.Raw(), ingestRateLimit),
	)
}
