package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"roomchat/database"
	"roomchat/internal/config"
	"roomchat/internal/microservices/http-api/middleware"
	"roomchat/internal/microservices/http-api/repository"
	"roomchat/internal/microservices/http-api/router"
	"roomchat/internal/microservices/http-api/service"
	"roomchat/internal/microservices/websocket"
	"roomchat/internal/security"
	"roomchat/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_failed", "error", err.Error())
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	users := repository.NewUserRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// no connection survives a restart
	cleared, anonymous, err := users.ResetPresence(ctx)
	if err != nil {
		return fmt.Errorf("reset presence: %w", err)
	}
	logger.Info("presence_reset", "cleared", cleared, "anonymous_deleted", anonymous)

	tokens := service.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, time.Now)
	auth := service.NewAuthService(users, tokens)
	if cfg.AdminUsername != "" {
		if err := auth.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		logger.Info("admin_ready", "username", cfg.AdminUsername)
	}

	classifier := security.NewClassifier()
	rooms := service.NewRoomService(roomRepo, users, messageRepo)
	messages := service.NewMessageService(messageRepo, rooms, classifier)

	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		return err
	}
	uploads := service.NewUploadService(store, rooms, classifier, cfg.UploadMaxSizeMB)

	limiter, closeLimiter, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	hub := websocket.NewHub(auth, rooms, messages, users, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.New(router.Deps{
		Auth:        auth,
		Rooms:       rooms,
		Messages:    messages,
		Uploads:     uploads,
		Hub:         hub,
		Limiter:     limiter,
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
		WS: websocket.HandlerConfig{
			AllowedOrigins:    cfg.CORSOrigins,
			MessagesPerSecond: float64(cfg.WSMessagesPerSecond),
			Burst:             cfg.WSBurst,
		},
		UploadDir:     store.Root(),
		UploadBaseURL: cfg.UploadBaseURL,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server_starting", "addr", srv.Addr, "env", cfg.GoEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("received_shutdown_signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// hijacked websocket connections are not tracked by Shutdown
		hub.Shutdown()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server_stopped_gracefully")
	return nil
}

// newLimiter picks the shared Redis limiter when REDIS_URL is set and
// reachable, the in-process one otherwise.
func newLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (middleware.Limiter, func(), error) {
	if cfg.RedisURL == "" {
		return middleware.NewMemoryLimiter(cfg.RateLimitPerMinute), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.Warn("redis_unavailable", "error", err.Error(), "fallback", "memory")
		return middleware.NewMemoryLimiter(cfg.RateLimitPerMinute), func() {}, nil
	}

	logger.Info("redis_connected", "addr", opts.Addr)
	return middleware.NewRedisLimiter(client, cfg.RateLimitPerMinute, time.Minute), func() { _ = client.Close() }, nil
}
