package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/peerspark/peerspark-backend/internal/http/handlers"
	httpMW "github.com/peerspark/peerspark-backend/internal/http/middleware"
)

type RouterConfig struct {
	AuthMiddleware *httpMW.AuthMiddleware

	AIHandler           *httpH.AIHandler
	ConversationHandler *httpH.ConversationHandler
	EmbeddingHandler    *httpH.EmbeddingHandler
	HealthHandler       *httpH.HealthHandler

	// ServiceName tags traces; empty disables the otel middleware.
	ServiceName string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.CORS())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.AIHandler != nil {
			protected.POST("/ai/match", cfg.AIHandler.Match)
			protected.POST("/ai/search", cfg.AIHandler.SemanticSearch)
			protected.POST("/ai/ask", cfg.AIHandler.Ask)
		}

		if cfg.ConversationHandler != nil {
			protected.POST("/ai/conversations", cfg.ConversationHandler.Create)
			protected.GET("/ai/conversations", cfg.ConversationHandler.List)
			protected.GET("/ai/conversations/:id/messages", cfg.ConversationHandler.History)
			protected.PATCH("/ai/conversations/:id", cfg.ConversationHandler.UpdateTitle)
			protected.DELETE("/ai/conversations/:id", cfg.ConversationHandler.Delete)
		}

		if cfg.EmbeddingHandler != nil {
			protected.POST("/embeddings/reembed", cfg.EmbeddingHandler.Reembed)
		}
	}

	return r
}
