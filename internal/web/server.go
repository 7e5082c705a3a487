package web

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"ai-force-assess/internal/config"
	"ai-force-assess/internal/orchestration"
	"ai-force-assess/internal/store"
	"ai-force-assess/internal/tenant"
)

// server bundles what the handlers need. Handlers hang off it so tests can
// stand up the whole API against the mock store.
type server struct {
	orch    *orchestration.Orchestrator
	trigger *orchestration.AutoTrigger
	cfg     *config.ServerConfig
}

func newServer(orch *orchestration.Orchestrator, trigger *orchestration.AutoTrigger, cfg *config.ServerConfig) *server {
	return &server{orch: orch, trigger: trigger, cfg: cfg}
}

func (s *server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(s.cfg.CORSOrigins))

	r.GET("/health", s.handleHealth)

	api := r.Group("/api/v1")
	api.Use(tenant.Middleware())
	{
		flows := api.Group("/master-flows")
		{
			flows.POST("", s.handleCreateFlow)
			flows.GET("", s.handleListFlows)
			flows.GET("/metrics", s.handleFlowMetrics)
			flows.GET("/:flowID", s.handleGetFlow)
			flows.GET("/:flowID/history", s.handleFlowHistory)
			flows.POST("/:flowID/advance", s.handleAdvanceFlow)
			flows.POST("/:flowID/complete-phase", s.handleCompletePhase)
			flows.POST("/:flowID/cancel", s.handleCancelFlow)
			flows.POST("/:flowID/resume", s.handleResumeFlow)
			flows.DELETE("/:flowID", s.handleDeleteFlow)
		}
		api.POST("/master-flows/cleanup", s.handleCleanupFlows)

		imports := api.Group("/imports")
		{
			imports.POST("", s.handleCreateImport)
			imports.GET("/:batchID", s.handleGetImport)
			imports.GET("/:batchID/mappings", s.handleGetMappings)
			imports.POST("/:batchID/mappings", s.handleConfirmMappings)
			imports.POST("/:batchID/cleanse", s.handleCleanseBatch)
			imports.GET("/:batchID/findings", s.handleListFindings)
		}

		assets := api.Group("/assets")
		{
			assets.GET("", s.handleListAssets)
			assets.GET("/:assetID", s.handleGetAsset)
			assets.GET("/:assetID/dependencies", s.handleAssetDependencies)
			assets.GET("/:assetID/blast-radius", s.handleBlastRadius)
		}
		api.POST("/dependencies", s.handleSaveDependencies)
		api.GET("/move-groups", s.handleMoveGroups)
		api.GET("/tech-debt", s.handleTechDebt)
		api.GET("/recommendations", s.handleRecommendations)

		api.GET("/questionnaires/:qID", s.handleGetQuestionnaire)
		api.POST("/questionnaires/:qID/responses", s.handleSaveResponse)

		// Legacy fallback family the old frontend still calls.
		legacy := api.Group("/unified-discovery")
		{
			legacy.POST("/flows", s.handleLegacyCreateFlow)
			legacy.GET("/flows", s.handleLegacyListFlows)
			legacy.GET("/flows/:flowID", s.handleLegacyGetFlow)
			legacy.POST("/flows/:flowID/advance", s.handleLegacyAdvanceFlow)
		}
	}

	return r
}

func (s *server) handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

// corsMiddleware adds CORS headers for the configured origins.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := "*"
	if len(origins) > 0 {
		allowed = strings.Join(origins, ", ")
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowed)
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+tenant.HeaderTenantID+", "+tenant.HeaderClientAccountID)
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// tenantID pulls the tenant off the request context. The middleware
// guarantees it is present on every /api/v1 route.
func tenantID(c *gin.Context) string {
	t, err := tenant.MustFromContext(c.Request.Context())
	if err != nil {
		return ""
	}
	return t.TenantID
}

// writeError maps domain errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	var illegal *orchestration.IllegalTransitionError
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(404, gin.H{"error": "not found"})
	case errors.As(err, &illegal):
		c.JSON(409, gin.H{"error": illegal.Error()})
	default:
		c.JSON(500, gin.H{"error": err.Error()})
	}
}
