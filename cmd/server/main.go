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
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mediline/telehealth-server-go/internal/callstate"
	"github.com/mediline/telehealth-server-go/internal/config"
	"github.com/mediline/telehealth-server-go/internal/database"
	"github.com/mediline/telehealth-server-go/internal/handler"
	"github.com/mediline/telehealth-server-go/internal/jobs"
	"github.com/mediline/telehealth-server-go/internal/middleware"
	"github.com/mediline/telehealth-server-go/internal/push"
	"github.com/mediline/telehealth-server-go/internal/realtime"
	"github.com/mediline/telehealth-server-go/internal/redis"
	"github.com/mediline/telehealth-server-go/internal/repository"
	"github.com/mediline/telehealth-server-go/internal/service"
	"github.com/mediline/telehealth-server-go/internal/signaling"
	"github.com/mediline/telehealth-server-go/internal/video"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("APP_ENV") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	appointmentRepo := repository.NewAppointmentRepository(db.DB)
	pushTokenRepo := repository.NewPushTokenRepository(db.DB)

	registry := realtime.NewRegistry()
	defer registry.Close()

	pushGateway, err := push.NewQueueGateway(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create push gateway")
	}
	defer pushGateway.Close()

	pushWorker, err := push.NewWorker(cfg.RedisURL, pushTokenRepo, cfg.PushGatewayURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create push worker")
	}
	if err := pushWorker.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start push worker")
	}
	defer pushWorker.Shutdown()

	store := callstate.NewStore()
	videoProvider := video.NewProvider(cfg.VideoRoomBaseURL)

	callService := service.NewCallService(appointmentRepo, store, registry, pushGateway, videoProvider, service.CallConfig{
		MaxRedials:         cfg.MaxRedials,
		RedialDelay:        cfg.RedialDelay(),
		ShortCallThreshold: cfg.ShortCallThreshold(),
	})
	defer callService.Stop()

	deviceService := service.NewDeviceService(pushTokenRepo)

	relay := signaling.NewRelay(registry)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	callHandler := handler.NewCallHandler(callService)
	deviceHandler := handler.NewDeviceHandler(deviceService)
	wsHandler := handler.NewWSHandler(registry, relay, callService, store)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)

		// The websocket endpoint is long-lived; the per-request rate
		// limit applies to the REST surface only.
		r.Get("/ws", wsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(rateLimitMiddleware.Handler)
			r.Mount("/appointments", callHandler.Routes())
			r.Mount("/push-tokens", deviceHandler.Routes())
		})
	})

	retentionJob := jobs.NewRetentionJob(store, pushTokenRepo, cfg.SessionRetention(), config.RetentionJobInterval)
	retentionJob.Start()
	defer retentionJob.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		// Websocket connections outlive any write deadline.
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
