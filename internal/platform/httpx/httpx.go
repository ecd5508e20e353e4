// Package httpx provides the shared gin response envelope and middleware
// (request logging, panic recovery, request-id correlation) used by the
// HTTP surface.
package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wyfcoding/simtrading/internal/errs"
	"github.com/wyfcoding/simtrading/internal/platform/logging"
	"github.com/wyfcoding/simtrading/internal/platform/metrics"
)

// RequestIDKey is the gin context key holding the per-request id.
const RequestIDKey = "request_id"

// Envelope is the response shape every handler returns.
type Envelope struct {
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// OK writes a 200 with data wrapped in the envelope.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Data: data, RequestID: requestID(c)})
}

// Created writes a 201 with data wrapped in the envelope.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Data: data, RequestID: requestID(c)})
}

// Fail maps err's taxonomy (internal/errs) to an HTTP status and writes the
// envelope's error field.
func Fail(c *gin.Context, err error) {
	status := statusFor(err)
	c.JSON(status, Envelope{Error: err.Error(), RequestID: requestID(c)})
}

func statusFor(err error) int {
	switch {
	case errs.Is(err, errs.InvalidArgument):
		return http.StatusBadRequest
	case errs.Is(err, errs.InsufficientFunds), errs.Is(err, errs.InsufficientHolding):
		return http.StatusPaymentRequired
	case errs.Is(err, errs.NotFound):
		return http.StatusNotFound
	case errs.Is(err, errs.Conflict):
		return http.StatusConflict
	case errs.Is(err, errs.Unavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func requestID(c *gin.Context) string {
	if v, ok := c.Get(RequestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// RequestContext returns c.Request's context annotated with the request id
// logging expects, for handlers to pass down into application services.
func RequestContext(c *gin.Context) context.Context {
	return logging.WithRequestID(c.Request.Context(), requestID(c))
}

// Logging assigns a request id and logs start/completion of every request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(RequestIDKey, id)

		start := time.Now()
		ctx := logging.WithRequestID(c.Request.Context(), id)
		logging.Info(ctx, "http request started",
			"method", c.Request.Method, "path", c.Request.URL.Path, "client_ip", c.ClientIP())

		c.Next()

		logging.Info(ctx, "http request completed",
			"method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}

// Instrumentation records HTTPRequestsTotal and HTTPRequestDuration for
// every request, labeled by the matched route template (not the raw path,
// which would blow up cardinality on path params).
func Instrumentation(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(route, c.Request.Method, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Recovery converts a panic into a 500 envelope instead of crashing the
// process.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				ctx := RequestContext(c)
				logging.Error(ctx, "http request panicked", "panic", r)
				c.JSON(http.StatusInternalServerError, Envelope{
					Error:     "internal server error",
					RequestID: requestID(c),
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
