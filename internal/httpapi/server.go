// Package httpapi exposes the dispatch pipeline over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/beltoedu/dispatchd/internal/chat"
	"github.com/beltoedu/dispatchd/internal/dispatch"
	"github.com/beltoedu/dispatchd/internal/endpoint"
	"github.com/beltoedu/dispatchd/internal/materials"
)

// ErrorResponse is the body of every error status. Chat frontends key off
// the "error" field, so all handlers funnel through this shape.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// AuthToken, when set, guards the chat-context and materials routes.
	AuthToken string
}

// Server wires the dispatch orchestrator, endpoint registry, and material
// store into HTTP endpoints.
type Server struct {
	echo         *echo.Echo
	orchestrator *dispatch.Orchestrator
	registry     *endpoint.Registry
	store        *materials.Store
	logger       *zap.Logger
	config       Config
}

// NewServer creates the HTTP server. The material store may be nil when
// lecture materials are disabled; the chat routes work without it.
func NewServer(orchestrator *dispatch.Orchestrator, registry *endpoint.Registry, store *materials.Store, cfg Config, logger *zap.Logger) (*Server, error) {
	if orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:         e,
		orchestrator: orchestrator,
		registry:     registry,
		store:        store,
		logger:       logger,
		config:       cfg,
	}
	s.registerRoutes()

	return s, nil
}

// errorHandler serializes echo errors as {"error": "..."} instead of echo's
// default {"message": "..."} envelope.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			}
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, ErrorResponse{Error: msg})
		}
		if writeErr != nil {
			logger.Error("writing error response failed", zap.Error(writeErr))
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/chat", s.handleChat)
	v1.GET("/chat/status", s.handleChatStatus)

	guarded := v1.Group("", s.bearerAuth)
	guarded.GET("/chat-context", s.handleChatContext)
	guarded.POST("/lectures/:lectureId/materials", s.handleIngestMaterial)
	guarded.GET("/lectures/:lectureId/materials", s.handleMaterialStatus)
	guarded.POST("/lectures/:lectureId/materials/search", s.handleSearchMaterials)
}

// bearerAuth rejects requests without the configured bearer token. With no
// token configured the routes are open (local development).
func (s *Server) bearerAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.config.AuthToken == "" {
			return next(c)
		}
		if c.Request().Header.Get(echo.HeaderAuthorization) != "Bearer "+s.config.AuthToken {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
		return next(c)
	}
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleChat runs a chat request through the dispatch pipeline. Upstream
// failures come back as a 200 fallback envelope; only unparseable or empty
// requests and server misconfiguration produce error statuses.
func (s *Server) handleChat(c echo.Context) error {
	var req chat.Request
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	reply, err := s.orchestrator.Handle(c.Request().Context(), &req)
	switch {
	case errors.Is(err, dispatch.ErrNoValidMessages):
		return echo.NewHTTPError(http.StatusBadRequest, "No valid messages with content provided")
	case errors.Is(err, dispatch.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusInternalServerError, "AI API key is not configured on the server")
	case err != nil:
		s.logger.Error("chat dispatch failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, reply)
}

// ChatStatusResponse is the response body for GET /api/v1/chat/status.
type ChatStatusResponse struct {
	Status             string            `json:"status"`
	Timestamp          time.Time         `json:"timestamp"`
	Endpoints          []endpoint.Status `json:"endpoints"`
	AvailableEndpoints int               `json:"availableEndpoints"`
	TotalEndpoints     int               `json:"totalEndpoints"`
}

func (s *Server) handleChatStatus(c echo.Context) error {
	statuses, available := s.registry.Statuses()
	return c.JSON(http.StatusOK, ChatStatusResponse{
		Status:             "ok",
		Timestamp:          time.Now().UTC(),
		Endpoints:          statuses,
		AvailableEndpoints: available,
		TotalEndpoints:     len(statuses),
	})
}

// ChatContextResponse is the response body for GET /api/v1/chat-context.
type ChatContextResponse struct {
	Success      bool              `json:"success"`
	LectureID    string            `json:"lectureId"`
	LectureTitle string            `json:"lectureTitle"`
	Attachments  []chat.Attachment `json:"attachments"`
}

// handleChatContext returns a lecture's materials as attachments for prompt
// enrichment.
func (s *Server) handleChatContext(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "lecture materials are disabled")
	}

	lectureID := c.QueryParam("lectureId")
	if lectureID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "lectureId is required")
	}

	title, mats, err := s.store.Lecture(lectureID)
	if err != nil {
		// Unknown lecture is not an error to the enricher; it sees the
		// unsuccessful payload and proceeds without context.
		return c.JSON(http.StatusOK, ChatContextResponse{
			Success:     false,
			LectureID:   lectureID,
			Attachments: []chat.Attachment{},
		})
	}

	attachments := make([]chat.Attachment, 0, len(mats))
	for _, m := range mats {
		attachments = append(attachments, chat.Attachment{Name: m.Title, Content: m.Content})
	}

	return c.JSON(http.StatusOK, ChatContextResponse{
		Success:      true,
		LectureID:    lectureID,
		LectureTitle: title,
		Attachments:  attachments,
	})
}

// IngestMaterialRequest is the request body for material uploads.
type IngestMaterialRequest struct {
	MaterialID   string `json:"materialId"`
	Title        string `json:"title"`
	LectureTitle string `json:"lectureTitle"`
	Content      string `json:"content"`
}

func (s *Server) handleIngestMaterial(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "lecture materials are disabled")
	}

	var req IngestMaterialRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := s.store.Ingest(c.Request().Context(), materials.Material{
		ID:           req.MaterialID,
		LectureID:    c.Param("lectureId"),
		LectureTitle: req.LectureTitle,
		Title:        req.Title,
		Content:      req.Content,
	})
	switch {
	case errors.Is(err, materials.ErrNoContent):
		return echo.NewHTTPError(http.StatusBadRequest, "material content is required")
	case err != nil:
		s.logger.Error("material ingest failed",
			zap.String("lecture_id", c.Param("lectureId")),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "failed to process material")
	}

	return c.JSON(http.StatusOK, result)
}

// MaterialStatusResponse is the response body for GET .../materials.
type MaterialStatusResponse struct {
	LectureID      string                     `json:"lectureId"`
	TotalMaterials int                        `json:"totalMaterials"`
	TotalChunks    int                        `json:"totalChunks"`
	Materials      []materials.MaterialStatus `json:"materials"`
}

func (s *Server) handleMaterialStatus(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "lecture materials are disabled")
	}

	lectureID := c.Param("lectureId")
	statuses, err := s.store.Statuses(lectureID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Lecture not found")
	}

	total := 0
	for _, st := range statuses {
		total += st.Chunks
	}

	return c.JSON(http.StatusOK, MaterialStatusResponse{
		LectureID:      lectureID,
		TotalMaterials: len(statuses),
		TotalChunks:    total,
		Materials:      statuses,
	})
}

// SearchMaterialsRequest is the request body for semantic search.
type SearchMaterialsRequest struct {
	Query         string  `json:"query"`
	Limit         int     `json:"limit"`
	MinSimilarity float32 `json:"minSimilarity"`
}

// SearchMaterialsResponse is the response body for semantic search.
type SearchMaterialsResponse struct {
	Query         string                   `json:"query"`
	Results       []materials.SearchResult `json:"results"`
	TotalFound    int                      `json:"totalFound"`
	MinSimilarity float32                  `json:"minSimilarity"`
}

func (s *Server) handleSearchMaterials(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "lecture materials are disabled")
	}

	var req SearchMaterialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.MinSimilarity == 0 {
		req.MinSimilarity = 0.5
	}

	results, err := s.store.Search(c.Request().Context(), c.Param("lectureId"), req.Query, req.Limit, req.MinSimilarity)
	switch {
	case errors.Is(err, materials.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, "Query is required")
	case err != nil:
		s.logger.Error("material search failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "failed to perform semantic search")
	}

	return c.JSON(http.StatusOK, SearchMaterialsResponse{
		Query:         req.Query,
		Results:       results,
		TotalFound:    len(results),
		MinSimilarity: req.MinSimilarity,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
