package api

import (
	"github.com/gin-gonic/gin"

	"github.com/rzzdr/actuarial-risk-core/pkg/metrics"
)

func (s *Server) setupRoutes(recorder *metrics.Recorder) {
	h := s.handlers

	s.router.GET("/health", h.HealthCheckHandler)
	if recorder != nil {
		s.router.GET("/metrics", gin.WrapH(recorder.Handler()))
	}

	v1 := s.router.Group("/api/v1")

	v1.POST("/pricing/quote", h.QuoteHandler)

	exposure := v1.Group("/exposure")
	exposure.POST("/rate", h.ExposureRateHandler)
	exposure.GET("/curve", h.ExposureCurveHandler)

	// Monte Carlo endpoints share one admission budget
	var compute []gin.HandlerFunc
	if s.limiter != nil {
		compute = append(compute, RateLimitMiddleware(s.limiter))
	}

	v1.POST("/aggregate/simulate", append(compute, h.SimulateHandler)...)
	v1.POST("/copula/sample", append(compute, h.CopulaSampleHandler)...)

	syndicates := v1.Group("/syndicates")
	syndicates.PUT("/records", h.ReplaceRecordsHandler)
	syndicates.POST("/quartiles", append(compute, h.QuartilesHandler)...)
	syndicates.GET("/transitions", h.TransitionsHandler)
	syndicates.DELETE("/cache", h.InvalidateCacheHandler)
}
