package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/photorestore/restore-server-go/internal/admission"
	"github.com/photorestore/restore-server-go/internal/config"
	"github.com/photorestore/restore-server-go/internal/database"
	"github.com/photorestore/restore-server-go/internal/handler"
	"github.com/photorestore/restore-server-go/internal/inference"
	"github.com/photorestore/restore-server-go/internal/jobs"
	"github.com/photorestore/restore-server-go/internal/middleware"
	"github.com/photorestore/restore-server-go/internal/reaper"
	"github.com/photorestore/restore-server-go/internal/redis"
	"github.com/photorestore/restore-server-go/internal/repository"
	"github.com/photorestore/restore-server-go/internal/service"
	"github.com/photorestore/restore-server-go/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("database connected")

	if cfg.RunMigrations {
		if err := db.Migrate(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	var controller admission.Controller
	switch cfg.AdmissionBackend {
	case config.AdmissionBackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")
		controller = admission.NewRedisController(redisClient.Client, config.AdmissionSlotTTL)
	default:
		controller = admission.NewMemoryController()
	}
	log.Info().
		Str("backend", cfg.AdmissionBackend).
		Int("limit", cfg.MaxConcurrentUploadsPerSession).
		Msg("admission control ready")

	store, err := storage.NewStore(cfg.OriginalsRoot(), cfg.ProcessedRoot())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare artifact storage")
	}

	userRepo := repository.NewUserRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	imageRepo := repository.NewProcessedImageRepository(db.DB)

	sessionReaper := reaper.New(sessionRepo, store, cfg.CleanupThreshold())

	sessionService := service.NewSessionService(sessionRepo, imageRepo, sessionReaper)
	historyService := service.NewHistoryService(sessionRepo, imageRepo, sessionReaper, store)
	authService := service.NewAuthService(userRepo, sessionService, cfg.JWTSecret, cfg.JWTTTL())
	provider := inference.NewHTTPProvider(cfg.InferenceURL, cfg.InferenceAPIKey, cfg.InferenceTimeout())
	restoreService := service.NewRestoreService(
		controller, cfg.MaxConcurrentUploadsPerSession,
		sessionService, historyService, provider, store, sessionReaper,
		cfg.DefaultModel,
	)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	loginLimiter := middleware.NewLoginRateLimiter(middleware.DefaultLoginMaxAttempts, middleware.DefaultLoginWindow)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	uploadLimitMiddleware := middleware.NewUploadLimitMiddleware(cfg.MaxUploadBytes)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	authHandler := handler.NewAuthHandler(authService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	restoreHandler := handler.NewRestoreHandler(restoreService, cfg.MaxUploadBytes)
	historyHandler := handler.NewHistoryHandler(historyService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		if err := db.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("health check: database unreachable")
			status, code = "degraded", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1/auth", func(r chi.Router) {
		r.Use(bodyLimitMiddleware.Handler)
		r.Use(loginLimiter.Handler)
		r.Mount("/", authHandler.Routes())
	})

	r.Route("/v1/restore", func(r chi.Router) {
		r.Use(uploadLimitMiddleware.Handler)
		r.Use(authMiddleware.Handler)
		r.Mount("/", restoreHandler.Routes())
	})

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Use(bodyLimitMiddleware.Handler)
		r.Use(authMiddleware.Handler)
		r.Mount("/", sessionHandler.Routes())
	})

	r.Route("/v1/history", func(r chi.Router) {
		r.Use(bodyLimitMiddleware.Handler)
		r.Use(authMiddleware.Handler)
		r.Mount("/", historyHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(
		cfg.CleanupInterval(), cfg.CleanupRunTimeout(),
		jobs.Task{
			Name: "inactive sessions",
			Run: func(ctx context.Context) (int64, error) {
				res, err := sessionReaper.RunOnce(ctx)
				return int64(res.SessionsDeleted), err
			},
		},
	)
	cleanupJob.Start()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	cleanupJob.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
