// Package api exposes the dashboard's event surface over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewEngine builds the gin engine with every route registered.
func NewEngine(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		errorHandlingMiddleware(handler.logger),
	)

	api := router.Group("/api/v1")
	{
		api.GET("/healthz", handler.Health)
		api.GET("/cities", handler.ListCities)
		api.POST("/cities", handler.SelectCity)
		api.PUT("/cities/order", handler.Reorder)
		api.DELETE("/cities/:id", handler.RemoveCity)
		api.POST("/convert", handler.Convert)
		api.GET("/clock", handler.Clock)
		api.GET("/catalog", handler.Catalog)
	}
	return router
}

// NewServer wraps the engine in an http.Server listening on addr.
func NewServer(addr string, handler *Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewEngine(handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}

func errorHandlingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		httpErr := asHTTPError(c.Errors.Last().Err)
		message := httpErr.Message
		if message == "" {
			message = httpErr.Error()
		}

		if httpErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed", "code", httpErr.Code, "status", httpErr.Status, "path", c.Request.URL.Path, "error", httpErr.Err)
		} else {
			logger.Warn("request failed", "code", httpErr.Code, "status", httpErr.Status, "path", c.Request.URL.Path, "error", httpErr.Err)
		}

		body := gin.H{
			"code":    httpErr.Code,
			"message": message,
		}
		if httpErr.Hint != "" {
			body["hint"] = httpErr.Hint
		}
		c.JSON(httpErr.Status, gin.H{"error": body})
	}
}
