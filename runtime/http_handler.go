package runtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	RunIDHeader = "X-Run-ID"

	msgInvalidRequest  = "Invalid request"
	msgFlowNotFound    = "Flow not found"
	msgUnexpectedError = "Unexpected server error"
)

type (
	// ErrorResponse is the body of every non-2xx answer.
	ErrorResponse struct {
		Message string  `json:"message"`
		Issues  []Issue `json:"issues,omitempty"`
	}

	// ValidateResponse is the body of a successful validation.
	ValidateResponse struct {
		Request  *RunRequest `json:"request"`
		Warnings Warnings    `json:"warnings"`
	}

	Warnings struct {
		DuplicateOutputKeys []string             `json:"duplicateOutputKeys"`
		UnresolvedVariables []UnresolvedVariable `json:"unresolvedVariables"`
	}

	// FlowSummary describes a library flow in listings.
	FlowSummary struct {
		ID          string `json:"id"`
		Name        string `json:"name,omitempty"`
		Description string `json:"description,omitempty"`
		Steps       int    `json:"steps"`
	}
)

// Server exposes flow execution over HTTP.
type Server struct {
	l        *slog.Logger
	app      *App
	runner   *Runner
	gatherer prometheus.Gatherer
}

// NewServer creates the HTTP API server. A nil gatherer disables /metrics.
func NewServer(l *slog.Logger, app *App, runner *Runner, gatherer prometheus.Gatherer) *Server {
	if l == nil {
		l = slog.Default()
	}
	return &Server{
		l:        l,
		app:      app,
		runner:   runner,
		gatherer: gatherer,
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return s.l
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", RunIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	{
		api.POST("/flow/run", s.handleRun)
		api.POST("/flow/validate", s.handleValidate)
		api.GET("/flow/default", s.handleDefaultFlow)

		api.GET("/flows", s.listFlows)
		api.GET("/flows/:flowID", s.getFlow)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c, err)
		return
	}

	resp, err := s.runner.Run(c.Request.Context(), &req)
	if err != nil {
		s.writeRunError(c, err)
		return
	}

	c.Header(RunIDHeader, resp.RunID)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleValidate(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c, err)
		return
	}

	if err := ValidateRequest(&req); err != nil {
		s.writeRunError(c, err)
		return
	}

	// Credentials are never echoed back
	req.APIKey = nil

	c.JSON(http.StatusOK, ValidateResponse{
		Request: &req,
		Warnings: Warnings{
			DuplicateOutputKeys: nonNil(DuplicateOutputKeys(req.Steps)),
			UnresolvedVariables: nonNil(UnresolvedVariables(req.Steps, &req.InputVariables)),
		},
	})
}

func (s *Server) handleDefaultFlow(c *gin.Context) {
	c.JSON(http.StatusOK, DefaultFlow())
}

func (s *Server) listFlows(c *gin.Context) {
	ids := s.app.FlowIDs()
	summaries := make([]FlowSummary, 0, len(ids))
	for _, id := range ids {
		f, _ := s.app.Flow(id)
		summaries = append(summaries, FlowSummary{
			ID:          f.ID,
			Name:        f.Name,
			Description: f.Description,
			Steps:       len(f.Steps),
		})
	}
	c.JSON(http.StatusOK, summaries)
}

func (s *Server) getFlow(c *gin.Context) {
	f, ok := s.app.Flow(c.Param("flowID"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: msgFlowNotFound})
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) badBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Message: msgInvalidRequest,
		Issues: []Issue{{
			Field:   "",
			Rule:    "json",
			Message: err.Error(),
		}},
	})
}

// writeRunError maps run failures onto responses. Validation failures carry
// their issues; step and provider failures name the step; anything else is
// logged and reported generically.
func (s *Server) writeRunError(c *gin.Context, err error) {
	var (
		validationErr *ValidationError
		stepErr       *StepExecutionError
		providerErr   *ProviderError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: msgInvalidRequest,
			Issues:  validationErr.Issues,
		})
	case errors.As(err, &stepErr),
		errors.As(err, &providerErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
	default:
		s.l.ErrorContext(c.Request.Context(), "Flow execution error",
			slog.String("path", c.Request.URL.Path),
			ErrorAttr(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: msgUnexpectedError})
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
