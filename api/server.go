package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/couchmongo/gateway/common"
	"github.com/couchmongo/gateway/gwerror"
	"github.com/couchmongo/gateway/metrics"
)

// ServerConfig contains configuration for creating the gateway's Echo
// server.
type ServerConfig struct {
	Debug     bool
	BodyLimit string  // e.g. "10M"; empty disables the limit
	RateLimit float64 // requests per second (0 = no limit)
}

// DefaultServerConfig returns a server config with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Debug:     false,
		BodyLimit: "10M",
		RateLimit: 0,
	}
}

// NewEchoServer builds the Echo instance for the gateway: request
// logging, panic recovery, body limit, request IDs and optional rate
// limiting, then the gateway-specific conditional-header extraction and
// the standard response headers every CouchDB-compatible response needs.
func NewEchoServer(config ServerConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = config.Debug

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
	}))
	e.Use(middleware.Recover())

	if config.BodyLimit != "" {
		e.Use(middleware.BodyLimit(config.BodyLimit))
	}

	e.Use(middleware.RequestID())

	if config.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(config.RateLimit),
		)))
	}

	e.Use(common.StandardHeaders)
	e.Use(common.ConditionalHeaders)

	e.HTTPErrorHandler = errorHandler

	return e
}

// errorHandler translates a gwerror.Error (or any other error) into the
// gateway's JSON error body, logging 5xx bodies before they're written so
// operators can diagnose failures without enabling request tracing.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var gwErr *gwerror.Error
	var he *echo.HTTPError
	status := http.StatusInternalServerError
	var body map[string]interface{}

	switch {
	case errors.As(err, &gwErr):
		status = gwErr.Status()
		body = gwErr.Body()
	case errors.As(err, &he):
		status = he.Code
		body = map[string]interface{}{"error": he.Message}
	default:
		body = map[string]interface{}{"error": "internal", "reason": err.Error()}
	}

	if status >= 500 {
		common.Logger.WithField("status", status).WithField("path", c.Request().URL.Path).Error(err.Error())
	}

	var writeErr error
	if body == nil {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, body)
	}
	if writeErr != nil {
		common.Logger.WithError(writeErr).Error("failed writing error response")
	}
}

// RegisterRoutes binds every endpoint in the gateway's HTTP surface to g.
func (g *Gateway) RegisterRoutes(e *echo.Echo) {
	if g.Metrics != nil {
		e.Use(g.Metrics.Middleware())
		e.GET("/metrics", metrics.Handler())
	}

	e.GET("/", g.handleRoot)
	e.GET("/:db", g.handleDBStub)

	e.GET("/:db/_all_docs", g.handleAllDocs)
	e.POST("/:db/_all_docs", g.handleAllDocs)

	e.POST("/:db/_bulk_docs", g.handleBulkDocs)

	e.GET("/:db/_design/:design/_view/:view", g.handleView)
	e.POST("/:db/_design/:design/_view/:view", g.handleView)
	e.POST("/:db/_design/:design/_view/:view/queries", g.handleViewQueries)

	e.PUT("/:db/_design/:design/_update/:func", g.handleUpdateFunction)
	e.POST("/:db/_design/:design/_update/:func", g.handleUpdateFunction)
	e.PUT("/:db/_design/:design/_update/:func/:docid", g.handleUpdateFunction)
	e.POST("/:db/_design/:design/_update/:func/:docid", g.handleUpdateFunction)

	e.GET("/:db/:id", g.handleGetDocument)
	e.PUT("/:db/:id", g.handlePutDocument)
	e.DELETE("/:db/:id", g.handleDeleteDocument)
	e.POST("/:db", g.handlePostDocument)
}
