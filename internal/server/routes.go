package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Documents
	s.echo.POST("/api/documents", s.handleIngestDocument)
	s.echo.GET("/api/documents", s.handleListDocuments)
	s.echo.GET("/api/documents/:id", s.handleGetDocument)
	s.echo.GET("/api/documents/:id/sentiment", s.handleGetSentiment)
	s.echo.GET("/api/documents/:id/deltas", s.handleGetDeltas)

	// Per-stage pipeline triggers; each is idempotent and retriable
	s.echo.POST("/api/documents/:id/score", s.handleScoreDocument)
	s.echo.POST("/api/documents/:id/align", s.handleAlignDocument)

	// Correlations
	s.echo.POST("/api/correlations/recompute", s.handleRecomputeCorrelations)
	s.echo.GET("/api/correlations", s.handleListCorrelations)
}
