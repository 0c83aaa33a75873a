package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ci-results-api/api/swagger"
	"github.com/noah-isme/ci-results-api/internal/handler"
	"github.com/noah-isme/ci-results-api/internal/middleware"
	"github.com/noah-isme/ci-results-api/internal/models"
	"github.com/noah-isme/ci-results-api/internal/query"
	"github.com/noah-isme/ci-results-api/internal/repository"
	"github.com/noah-isme/ci-results-api/internal/service"
	"github.com/noah-isme/ci-results-api/pkg/cache"
	"github.com/noah-isme/ci-results-api/pkg/config"
	"github.com/noah-isme/ci-results-api/pkg/database"
	"github.com/noah-isme/ci-results-api/pkg/dispatch"
	"github.com/noah-isme/ci-results-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ci-results-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ci-results-api/pkg/middleware/requestid"
	"github.com/noah-isme/ci-results-api/pkg/taskqueue"
)

// @title CI Results API
// @version 1.0
// @description Stores and queries build, boot and test results of a CI pipeline.
// @BasePath /
// @schemes http
// @securityDefinitions.apikey TokenAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "api")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	mongoClient, db, err := database.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		logr.Fatal("failed to connect document store", zap.Error(err))
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logr.Warn("failed to disconnect document store", zap.Error(err))
		}
	}()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis, "ci-results-api")
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	documents := repository.NewDocumentRepository(db, logr, metrics)
	if cfg.Mongo.EnsureIndexes {
		if err := documents.EnsureIndexes(ctx); err != nil {
			logr.Fatal("failed to ensure indexes", zap.Error(err))
		}
	}

	checks := map[string]handler.Pinger{
		"mongo": documents,
	}

	var tokens service.TokenRepository
	switch cfg.Auth.TokenBackend {
	case config.TokenBackendPostgres:
		var pg *sqlx.DB
		pg, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect token database", zap.Error(err))
		}
		defer pg.Close() //nolint:errcheck
		pgTokens := repository.NewPostgresTokenRepository(pg)
		if err := pgTokens.EnsureSchema(ctx); err != nil {
			logr.Fatal("failed to prepare token table", zap.Error(err))
		}
		checks["postgres"] = pgTokens
		tokens = pgTokens
	default:
		tokens = repository.NewMongoTokenRepository(db)
	}

	v := validator.New()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	checks["redis"] = cacheRepo
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Bisect.CacheTTL, logr, cfg.Bisect.CacheEnabled)

	bridge := taskqueue.NewBridge(taskqueue.NewRedisBroker(redisClient), taskqueue.BridgeConfig{
		Queue:        cfg.Tasks.Queue,
		Store:        taskqueue.StoreOptions{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database},
		AwaitTimeout: cfg.Tasks.AwaitTimeout,
		Logger:       logr,
		Metrics:      metrics,
	})

	authority := service.NewTokenAuthority(tokens, nil, logr, metrics)
	resources := service.NewResourceService(documents, bridge, query.NewTranslator(nil), v, logr).InvalidateBisects(cacheSvc)
	tokenSvc := service.NewTokenService(tokens, v, logr)
	bisectSvc := service.NewBisectService(bridge, cacheSvc, cfg.Bisect.CacheTTL, logr)

	dispatcher := dispatch.New(dispatch.Config{
		Workers:   cfg.Dispatcher.Workers,
		QueueSize: cfg.Dispatcher.QueueSize,
		Logger:    logr,
		Metrics:   metrics,
	})
	dispatcher.Start()

	basePath := "/" + strings.Trim(cfg.APIPrefix, "/")
	routes := handler.Routes{
		Count:   handler.NewCountHandler(resources, authority, dispatcher),
		Token:   handler.NewTokenHandler(tokenSvc, authority, dispatcher, basePath),
		Bisect:  handler.NewBisectHandler(bisectSvc, authority, dispatcher),
		Metrics: handler.NewMetricsHandler(metrics, cfg.Version, checks, logr),
	}
	for _, res := range []models.Resource{models.ResourceJob, models.ResourceBuild, models.ResourceBoot, models.ResourceTest} {
		routes.Resources = append(routes.Resources, handler.NewResourceHandler(res, resources, authority, dispatcher, basePath))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins, cfg.Auth.TokenHeader))
	r.Use(middleware.Metrics(metrics, path.Join(basePath, "metrics")))
	r.Use(middleware.Token(cfg.Auth.TokenHeader, cfg.Auth.AllowQueryToken))

	handler.Register(r.Group(basePath), routes)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "workers", dispatcher.Workers())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Tasks.AwaitTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	dispatcher.Stop()
}
