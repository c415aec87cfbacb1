package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"Snapfeed/internal/api/handlers/common"
	"Snapfeed/internal/api/handlers/files"
	"Snapfeed/internal/api/middleware"
	"Snapfeed/internal/api/routes"
	"Snapfeed/internal/config"
	"Snapfeed/internal/core/creators"
	"Snapfeed/internal/core/feed"
	"Snapfeed/internal/core/posts"
	"Snapfeed/internal/core/social"
	"Snapfeed/internal/core/users"
	"Snapfeed/internal/db"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := initTracing(ctx, cfg.OTELEndpoint, cfg.OTELServiceName, logger)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(c)
	}()

	// Backends
	store, closeStore, err := db.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	blobStore, closeBlobs, err := db.OpenBlobs(ctx, cfg, "http://localhost:"+cfg.Port, logger)
	if err != nil {
		return err
	}
	defer closeBlobs()

	cache, closeCache, err := db.OpenCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	// Services
	resolver := creators.NewResolver(store, cfg.Collections.Users, cfg.PlaceholderImage, logger)
	projector := posts.NewProjector(resolver, blobStore, logger)
	postService := posts.NewPostService(posts.Options{
		Store:       store,
		Blobs:       blobStore,
		Projector:   projector,
		Cache:       cache,
		Logger:      logger,
		Collections: cfg.Collections,
		RecentLimit: cfg.RecentPostsLimit,
	})
	userService := users.NewUserService(store, cfg.Collections, logger)
	engine := feed.NewEngine(store, cfg.Collections.Posts, projector, cfg.FeedPageSize, logger)
	mutator := social.NewMutator(store, cfg.Collections, cache, logger)
	loader := common.NewCurrentUserLoader(userService, cache)

	// Router
	r := chi.NewRouter()

	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go rateLimiter.RunCleanup(time.Minute, ctx.Done())
	r.Use(rateLimiter.Middleware)

	auth := middleware.NewJWTAuthMiddleware([]byte(cfg.AuthJWTSecret), cfg.AuthIssuer, logger)

	routes.RegisterOpsRoutes(r)
	if opener, ok := blobStore.(files.Opener); ok {
		routes.RegisterFileRoutes(r, opener)
	}
	routes.RegisterUserRoutes(r, loader, auth)
	routes.RegisterPostRoutes(r, routes.PostDeps{
		Posts:   postService,
		Feed:    engine,
		Mutator: mutator,
		Cache:   cache,
		Users:   loader,
	}, auth)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(r, "http.server"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("snapfeed starting",
			"port", cfg.Port,
			"store", cfg.StoreBackend,
			"blobs", cfg.BlobBackend)
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

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
