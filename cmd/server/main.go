package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"rentmatch/internal/config"
	"rentmatch/internal/geo"
	"rentmatch/internal/handler"
	"rentmatch/internal/logger"
	"rentmatch/internal/repository"
	"rentmatch/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("rentmatch starting",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	if err := run(cfg, lg); err != nil {
		lg.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		return err
	}
	defer repo.Close()
	lg.Info("connected to PostgreSQL")

	if cfg.PostgreSQL.AutoMigrate {
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	cache, err := newGeocodeCache(ctx, cfg, lg)
	if err != nil {
		return err
	}

	geocoder := geo.NewNominatimClient(
		&http.Client{Timeout: cfg.Geocoding.Timeout},
		cfg.Geocoding.BaseURL,
		cfg.Geocoding.UserAgent,
		cfg.Geocoding.CountryCode,
		cfg.Geocoding.Timeout,
	)

	suggestService := service.NewSuggestService(geocoder, cache, repo, service.SuggestOptions{
		MinQueryLength:      cfg.Search.MinQueryLength,
		LocationSuggestions: cfg.Search.LocationSuggestions,
		PropertySuggestions: cfg.Search.PropertySuggestions,
		MaxSuggestions:      cfg.Search.MaxSuggestions,
		CorpusSize:          cfg.Search.CorpusSize,
	}, lg.Named("suggest"))
	defer func() {
		if err := suggestService.Close(); err != nil {
			lg.Warn("failed to close geocode cache", zap.Error(err))
		}
	}()

	if err := suggestService.Refresh(ctx); err != nil {
		lg.Warn("initial corpus load failed", zap.Error(err))
	}
	go suggestService.RunRefresh(ctx, cfg.Search.CorpusRefresh)

	ranker := service.NewRanker(service.Weights{
		Budget:       cfg.Ranking.WeightBudget,
		Bedrooms:     cfg.Ranking.WeightBedrooms,
		Location:     cfg.Ranking.WeightLocation,
		Availability: cfg.Ranking.WeightAvailability,
	}, cfg.Ranking.NetworkBoost)
	searchService := service.NewSearchService(repo, service.NewQueryClassifier(), ranker, suggestService, lg.Named("search"))
	saver := service.NewSaveCoordinator(repo, lg.Named("saved"))

	lg.Info("services initialized")

	searchHandler := handler.NewSearchHandler(searchService, cfg.Search.DefaultLimit, cfg.Search.MaxLimit, lg.Named("http"))
	suggestHandler := handler.NewSuggestHandler(suggestService, service.NewQueryTracker(), cfg.Search.MaxSuggestions)
	savedHandler := handler.NewSavedHandler(saver)
	feedbackHandler := handler.NewFeedbackHandler(searchService)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(lg.Named("http")))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowMethods = cfg.Server.AllowedMethods
	corsConfig.AllowHeaders = cfg.Server.AllowedHeaders
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if err := repo.Ping(c.Request.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":     status,
			"service":    "rentmatch",
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	apiV1 := router.Group("/api/v1")
	{
		// Search and scoring
		apiV1.POST("/search", searchHandler.Search)
		apiV1.POST("/match", searchHandler.Match)
		apiV1.GET("/classify", searchHandler.Classify)
		apiV1.GET("/suggest", suggestHandler.Suggest)
		apiV1.GET("/listings/:id", searchHandler.GetListing)
		apiV1.PUT("/listings/:id", searchHandler.PutListing)
		apiV1.GET("/listings/:id/similar", searchHandler.Similar)

		// Saved properties
		apiV1.GET("/users/:userId/saved", savedHandler.List)
		apiV1.GET("/users/:userId/saved/:propertyId", savedHandler.Status)
		apiV1.PUT("/users/:userId/saved/:propertyId", savedHandler.Save)
		apiV1.DELETE("/users/:userId/saved/:propertyId", savedHandler.Unsave)

		apiV1.POST("/embeddings/batch", searchHandler.UpdateEmbeddings)
		apiV1.POST("/feedback", feedbackHandler.Submit)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	lg.Info("server stopped")
	return nil
}

// newGeocodeCache picks Redis when REDIS_ADDR is set, otherwise an in-process map
func newGeocodeCache(ctx context.Context, cfg *config.Config, lg *zap.Logger) (geo.Cache, error) {
	if cfg.Redis.Addr == "" {
		lg.Info("using in-memory geocode cache")
		return geo.NewMemoryCache(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	lg.Info("using redis geocode cache", zap.String("addr", cfg.Redis.Addr))
	return geo.NewRedisCache(rdb, cfg.Redis.KeyPrefix, lg.Named("geocache")), nil
}

func requestLogger(lg *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		lg.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
