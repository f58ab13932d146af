// Package middleware holds the gin middleware shared by all HTTP routes.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/piwi3910/FabriCut/internal/logger"
)

// Context keys set by the middleware.
const (
	RequestIDKey = "request_id"
	WorkspaceKey = "workspace_id"
	ActorKey     = "actor"
)

// Headers read by the middleware.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderWorkspace = "X-Workspace-ID"
	HeaderActor     = "X-Actor"
)

var workspacePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// RequestID tags every request with an id, reusing the caller's when sent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Writer.Header().Set(HeaderRequestID, requestID)
		c.Next()
	}
}

// Logger writes one log line per request. 5xx responses log at error level,
// 4xx at warn.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Int("status", status).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Str("request_id", c.GetString(RequestIDKey)).
			Str("workspace_id", c.GetString(WorkspaceKey)).
			Msg("Request")
	}
}

// Recovery turns a panic into a 500 response and logs the stack.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Str("request_id", c.GetString(RequestIDKey)).
					Msg("Recovered from panic")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    "INTERNAL",
					"message": "internal error",
				})
			}
		}()
		c.Next()
	}
}

// Workspace requires the X-Workspace-ID header and stores it, together with
// the optional X-Actor header, on the context.
func Workspace() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws := c.GetHeader(HeaderWorkspace)
		if !workspacePattern.MatchString(ws) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "X-Workspace-ID header is required",
				"field":   "workspace_id",
			})
			return
		}
		c.Set(WorkspaceKey, ws)
		c.Set(ActorKey, c.GetHeader(HeaderActor))
		c.Next()
	}
}

// Timeout bounds the request context. Handlers pass it down so database and
// risk calls are cancelled with the request.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// WorkspaceID returns the workspace stored by Workspace.
func WorkspaceID(c *gin.Context) string {
	return c.GetString(WorkspaceKey)
}

// Actor returns the caller identity stored by Workspace.
func Actor(c *gin.Context) string {
	return c.GetString(ActorKey)
}
