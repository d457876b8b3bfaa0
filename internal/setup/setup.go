// Package setup wires the application together: configuration, logging, the
// database, the Redis lookup cache, the signed API client, and the sync
// orchestrator.
package setup

import (
	"context"
	"log"
	"time"

	"github.com/mlaa/commons-sync/internal/auth"
	"github.com/mlaa/commons-sync/internal/cache"
	"github.com/mlaa/commons-sync/internal/database"
	"github.com/mlaa/commons-sync/internal/mla"
	"github.com/mlaa/commons-sync/internal/mla/sign"
	"github.com/mlaa/commons-sync/internal/redis"
	"github.com/mlaa/commons-sync/internal/setup/config"
	syncer "github.com/mlaa/commons-sync/internal/sync"
	"github.com/mlaa/commons-sync/internal/username"
	"github.com/mlaa/commons-sync/pkg/utils"
	"go.uber.org/zap"
)

// App bundles the shared components every entrypoint needs.
type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	DBLogger      *zap.Logger
	DB            database.Client
	RedisManager  *redis.Manager
	MLAClient     *mla.Client
	Orchestrator  *syncer.Orchestrator
	Authenticator *auth.Authenticator
	Usernames     *username.Validator
}

// InitializeApp performs the common setup tasks and returns an App.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger, dbLogger, err := GetLoggers(logDir, cfg.Debug.LogLevel, cfg.Debug.MaxLogsToKeep)
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded configuration", zap.String("configDir", configDir))

	db, err := database.NewConnection(ctx, &cfg.PostgreSQL, dbLogger, true)
	if err != nil {
		return nil, err
	}

	redisManager := redis.NewManager(&cfg.Redis, logger)

	signer := sign.New(cfg.API.Key, cfg.API.Secret)
	mlaClient := mla.NewClient(
		cfg.API.BaseURL,
		signer,
		time.Duration(cfg.API.RequestTimeout)*time.Millisecond,
		retryOptions(&cfg.Retry),
		logger,
	)

	opts := []syncer.Option{
		syncer.WithUpdateInterval(time.Duration(cfg.Sync.UpdateInterval) * time.Second),
	}

	// The lookup cache is a fast path only; a Redis failure at startup just
	// means every group lookup hits the database.
	if cacheClient, err := redisManager.GetClient(redis.CacheDBIndex); err != nil {
		logger.Warn("Continuing without group lookup cache", zap.Error(err))
	} else {
		opts = append(opts, syncer.WithGroupIDCache(cache.NewGroupLookup(cacheClient, logger)))
	}

	repo := db.Model()
	orchestrator := syncer.New(
		mlaClient, repo.Member(), repo.Group(), repo.Membership(), repo.Cursor(), logger, opts...)

	return &App{
		Config:        cfg,
		Logger:        logger,
		DBLogger:      dbLogger,
		DB:            db,
		RedisManager:  redisManager,
		MLAClient:     mlaClient,
		Orchestrator:  orchestrator,
		Authenticator: auth.New(mlaClient, repo.Member(), orchestrator, logger),
		Usernames:     username.New(mlaClient, repo.Member(), logger),
	}, nil
}

// Cleanup releases the App's resources.
func (a *App) Cleanup() {
	if err := a.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := a.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	if err := a.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	a.RedisManager.Close()
}

// retryOptions maps the retry config onto the API client's retry options,
// falling back to the defaults for unset values.
func retryOptions(cfg *config.Retry) utils.RetryOptions {
	opts := utils.GetAPIRetryOptions()

	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}

	if cfg.Delay > 0 {
		opts.InitialInterval = time.Duration(cfg.Delay) * time.Millisecond
	}

	if cfg.MaxDelay > 0 {
		opts.MaxInterval = time.Duration(cfg.MaxDelay) * time.Millisecond
	}

	if cfg.MaxElapsedTime > 0 {
		opts.MaxElapsedTime = time.Duration(cfg.MaxElapsedTime) * time.Millisecond
	}

	return opts
}
