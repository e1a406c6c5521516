package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/imgkeeper/internal/common"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	requestIDKey = "request_id"
	tokenKey     = "token"
)

// withRequestID reuses a client supplied X-Request-ID or generates one.
func withRequestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(common.RequestIDHeaderName)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Response().Header().Set(common.RequestIDHeaderName, id)
		return next(c)
	}
}

func requestID(c echo.Context) string {
	id, _ := c.Get(requestIDKey).(string)
	return id
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		req := c.Request()
		s.logger.Info(req.Context(), "http request",
			"request_id", requestID(c),
			"method", req.Method,
			"path", req.URL.Path,
			"status", c.Response().Status,
			"bytes", c.Response().Size,
			"latency", time.Since(start).String(),
		)
		return nil
	}
}

// withTimeout bounds the request context handed to the services.
func withTimeout(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// bodyLimit caps the request body; reads past n fail with *http.MaxBytesError.
func bodyLimit(n int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if n <= 0 {
			return next
		}
		return func(c echo.Context) error {
			req := c.Request()
			req.Body = http.MaxBytesReader(c.Response(), req.Body, n)
			return next(c)
		}
	}
}

// requireBearer extracts the bearer token; resolving it is left to the
// services so every operation authenticates the same way.
func requireBearer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get(common.AuthorizationHeaderName)
		if len(auth) < len(common.BearerPrefix) || !strings.EqualFold(auth[:len(common.BearerPrefix)], common.BearerPrefix) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
		}
		token := strings.TrimSpace(auth[len(common.BearerPrefix):])
		if token == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
		}
		c.Set(tokenKey, token)
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	t, _ := c.Get(tokenKey).(string)
	return t
}
