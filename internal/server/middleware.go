package server

import (
	"net/http"
	"time"

	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	fields := map[string]any{
		"method":  c.Request.Method,
		"path":    c.FullPath(),
		"uri":     c.Request.URL.RequestURI(),
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	}
	switch {
	case c.Writer.Status() >= http.StatusInternalServerError:
		utils.Error("HTTP Request", fields)
	case c.Request.URL.Path == "/healthz":
		utils.Debug("HTTP Request", fields)
	default:
		utils.Info("HTTP Request", fields)
	}
}

// HealthHandler handles GET /healthz
func HealthHandler(c *gin.Context) {
	utils.JSONResponse(c, http.StatusOK, gin.H{"status": "ok"}, "service healthy")
}
