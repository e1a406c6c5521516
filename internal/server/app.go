// Package server wires the imgkeeper components together: database, blob
// storage, password hashing, the background remover and the HTTP and gRPC
// servers. It handles graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/imgkeeper/internal/cryptox"
	"github.com/dmitrijs2005/imgkeeper/internal/logging"
	"github.com/dmitrijs2005/imgkeeper/internal/server/blob"
	"github.com/dmitrijs2005/imgkeeper/internal/server/config"
	"github.com/dmitrijs2005/imgkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/imgkeeper/internal/server/services"
	"github.com/dmitrijs2005/imgkeeper/internal/server/transform"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/imgkeeper/internal/server/grpc"
	hs "github.com/dmitrijs2005/imgkeeper/internal/server/http"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   *redis.Client
	service *services.Service
}

// logOutput is where the application logger writes.
var logOutput io.Writer = os.Stdout

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(logOutput, c.LogLevel, c.LogFormat)

	db, rm, err := repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	blobs, err := newBlobStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	hasher, err := cryptox.NewPasswordHasher(c.PasswordScheme, c.Argon2(), c.BcryptCost)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("password hasher init error: %w", err)
	}

	remover := transform.New(c.TransformEndpoint, c.TransformTimeout)
	svc := services.NewService(db, rm, hasher, blobs, remover, c.MaxUploadBytes, logger)

	app := &App{config: c, logger: logger, db: db, service: svc}
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword})
	}

	logger.Info(ctx, "App initialized",
		"db_driver", c.DatabaseDriver,
		"storage", c.StorageBackend,
		"password_scheme", c.PasswordScheme,
		"transform", c.TransformEndpoint != "",
		"rate_limit", app.redis != nil,
	)
	return app, nil
}

func newBlobStore(ctx context.Context, c *config.Config) (blob.Store, error) {
	switch c.StorageBackend {
	case config.StorageS3:
		return blob.NewS3Store(ctx, blob.S3Config{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Prefix:       c.S3Prefix,
		})
	case config.StorageFileSystem:
		return blob.NewFileSystemStore(c.StorageRoot)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", c.StorageBackend)
	}
}

func (app *App) httpOptions() hs.Options {
	opts := hs.Options{
		RequestTimeout:  app.config.RequestTimeout,
		ShutdownTimeout: app.config.ShutdownTimeout,
		MaxUploadBytes:  app.config.MaxUploadBytes,
		RateLimit: hs.RateLimitConfig{
			Capacity:  app.config.RateLimitCapacity,
			PerSecond: app.config.RateLimitPerSecond,
			Prefix:    "imgkeeper:rl",
		},
	}
	// a typed nil client must not reach the limiter
	if app.redis != nil {
		opts.Redis = app.redis
	}
	return opts
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := hs.NewServer(app.config.HTTPAddr, app.logger, app.service, app.httpOptions())
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.db, 0)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is canceled, a signal arrives or a server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.WithoutCancel(ctx))
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "error closing redis client", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "error closing database", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
