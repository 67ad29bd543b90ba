package api

import (
	"github.com/gambhirsharma/unleash/internal/segment"
	"github.com/gin-gonic/gin"
)

// Service exposes the segment administration API over HTTP.
type Service struct {
	segments *segment.Service
}

// NewService creates a new segment API service.
func NewService(segments *segment.Service) *Service {
	return &Service{segments: segments}
}

// RegisterRoutes registers the segment API routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	handler := NewHandler(s.segments)

	admin := r.Group("/api/admin")
	{
		segments := admin.Group("/segments")
		{
			segments.GET("", handler.HandleList)
			segments.POST("", handler.HandleCreate)
			segments.POST("/validate", handler.HandleValidateName)
			segments.GET("/:id", handler.HandleGet)
			segments.PUT("/:id", handler.HandleUpdate)
			segments.DELETE("/:id", handler.HandleDelete)
			segments.GET("/:id/strategies", handler.HandleGetStrategies)
			segments.POST("/:id/strategies/:strategyId", handler.HandleAddToStrategy)
			segments.DELETE("/:id/strategies/:strategyId", handler.HandleRemoveFromStrategy)
		}

		strategies := admin.Group("/strategies/:strategyId/segments")
		{
			strategies.GET("", handler.HandleGetByStrategy)
			strategies.PUT("", handler.HandleUpdateStrategySegments)
			strategies.POST("/clone", handler.HandleCloneStrategySegments)
		}
	}

	// Reduced projection for runtime evaluation consumers.
	r.GET("/api/client/segments", handler.HandleGetActiveForClient)
}
