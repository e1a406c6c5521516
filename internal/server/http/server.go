// Package http serves the imgkeeper REST API with echo.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/imgkeeper/internal/logging"
	"github.com/dmitrijs2005/imgkeeper/internal/server/models"
	"github.com/dmitrijs2005/imgkeeper/internal/server/services"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
)

// multipartOverhead is allowed on top of the image size for form framing.
const multipartOverhead = 1 << 20

// ImageService is what the handlers need from services.Service.
type ImageService interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	UploadImage(ctx context.Context, token, filename string, data []byte) (string, error)
	ListImages(ctx context.Context, token string) ([]*models.Image, error)
	OpenImage(ctx context.Context, token, storedPath string) ([]byte, error)
	RemoveBackground(ctx context.Context, token, filename string, data []byte) (*services.ProcessedImage, error)
}

type Options struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	RateLimit       RateLimitConfig
	// Redis backs the login/register rate limiter; nil disables it.
	Redis redis.Scripter
}

type Server struct {
	address string
	service ImageService
	logger  logging.Logger
	opts    Options
	echo    *echo.Echo
}

func NewServer(address string, l logging.Logger, svc ImageService, opts Options) *Server {
	s := &Server{
		address: address,
		service: svc,
		logger:  l.With("module", "http_server"),
		opts:    opts,
	}
	s.echo = s.routes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(withRequestID)
	e.Use(s.logRequests)
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(withTimeout(s.opts.RequestTimeout))

	limit := bodyLimit(s.opts.MaxUploadBytes*2 + multipartOverhead)
	rl := NewTokenBucket(s.opts.RateLimit, s.opts.Redis, s.logger)

	e.GET("/health", s.health)

	api := e.Group("/api")
	api.POST("/register", s.register, rl)
	api.POST("/login", s.login, rl)

	api.POST("/images", s.uploadImage, requireBearer, limit)
	api.GET("/images", s.listImages, requireBearer)
	api.GET("/images/*", s.getImage, requireBearer)

	e.POST("/remove-background", s.removeBackground, requireBearer, limit)
	e.POST("/remove-background-base64", s.removeBackgroundBase64, requireBearer, limit)

	return e
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		timeout := s.opts.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
