package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/tonelift/api/internal/auth"
	"github.com/tonelift/api/internal/client"
	"github.com/tonelift/api/internal/config"
	"github.com/tonelift/api/internal/engine"
	"github.com/tonelift/api/internal/events"
	"github.com/tonelift/api/internal/handler"
	"github.com/tonelift/api/internal/middleware"
	"github.com/tonelift/api/internal/service"
	"github.com/tonelift/api/internal/store"
	"github.com/tonelift/api/internal/worker"
	ws "github.com/tonelift/api/internal/websocket"
)

// @title          ToneLift API
// @version        1.0
// @description    Adaptive audio enhancement service — analyze, plan, render, normalize.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection; the service degrades to in-process
	// fallbacks without it
	ctx := context.Background()
	redisAvailable := true
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
		redisAvailable = false
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize DSP engine (falls back to stub when ffmpeg is absent)
	var dspEngine engine.Engine
	ffmpegEngine := engine.NewFFmpegEngine(cfg.Engine.FFmpegBin, cfg.Engine.FFprobeBin)
	if ffmpegEngine.Available() {
		dspEngine = ffmpegEngine
	} else {
		log.Printf("Warning: %s not found, using stub engine", cfg.Engine.FFmpegBin)
		dspEngine = engine.NewStubEngine()
	}

	// Initialize object storage client (optional - continues if not configured)
	var storageClient client.StorageClient
	if cfg.Storage.AccessKeyID != "" && cfg.Storage.SecretAccessKey != "" {
		s3Client, err := client.NewS3Client(&cfg.Storage)
		if err != nil {
			log.Printf("Warning: storage client not initialized: %v", err)
		} else {
			storageClient = s3Client
		}
	} else {
		log.Println("Info: object storage not configured, serving outputs locally")
	}

	// Initialize OIDC JWKS verifier (optional - falls back to legacy JWT)
	var jwksVerifier *auth.JWKSVerifier
	if cfg.OIDC.Issuer != "" {
		var err error
		jwksVerifier, err = auth.NewJWKSVerifier(&cfg.OIDC)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
		}
	}

	// Initialize job store
	var jobStore store.JobStore
	if redisAvailable {
		jobStore = store.NewRedisStore(redisClient)
	} else {
		log.Println("Warning: using in-memory job store, jobs are lost on restart")
		jobStore = store.NewMemoryStore()
	}

	// Initialize classification event log (ring + durable sink)
	var eventSink events.Sink
	sqliteSink, err := events.OpenSQLiteSink(cfg.Events.DBPath)
	if err != nil {
		log.Printf("Warning: event sink not initialized: %v", err)
	} else {
		eventSink = sqliteSink
		defer sqliteSink.Close()
	}
	eventLogger := events.NewLogger(cfg.Events.RingSize, eventSink)

	// Initialize the enhancement worker
	fetcher := client.NewFetcher(cfg.Engine.TimeoutSec)
	enhanceWorker := worker.NewEnhanceWorker(
		jobStore, dspEngine, fetcher, storageClient, eventLogger, hub,
		cfg.Engine.ScratchDir, cfg.Engine.OutputDir,
	)

	// Initialize job dispatch: asynq when Redis is up, in-process otherwise
	var dispatcher service.Dispatcher
	if redisAvailable {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()
		dispatcher = service.NewAsynqDispatcher(asynqClient)
		go startWorkerServer(cfg, enhanceWorker)
	} else {
		log.Println("Warning: dispatching jobs in-process")
		dispatcher = service.NewInlineDispatcher(enhanceWorker)
	}

	// Initialize services
	enhanceService := service.NewEnhanceService(jobStore, dispatcher, eventLogger)
	uploadService := service.NewUploadService(storageClient, cfg.Engine.StagingDir)

	// Initialize handlers
	enhanceHandler := handler.NewEnhanceHandler(enhanceService, validate)
	uploadHandler := handler.NewUploadHandler(uploadService, validate)
	eventsHandler := handler.NewEventsHandler(eventLogger)

	// Initialize auth handler for ForwardAuth verification
	var tokenVerifier auth.TokenVerifier
	if jwksVerifier != nil {
		tokenVerifier = jwksVerifier
	}
	authHandler := handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret)

	// Initialize middleware (with fallback support)
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind a gateway: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled — using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else if jwksVerifier != nil || cfg.JWT.Secret != "" {
		// Direct mode: auth is handled by the backend itself
		var authMiddleware *middleware.AuthMiddleware
		if jwksVerifier != nil && cfg.JWT.Secret != "" {
			authMiddleware = middleware.NewAuthMiddlewareWithFallback(jwksVerifier, cfg.JWT.Secret)
		} else if jwksVerifier != nil {
			authMiddleware = middleware.NewAuthMiddleware(jwksVerifier)
		} else {
			authMiddleware = middleware.NewLegacyAuthMiddleware(cfg.JWT.Secret)
		}
		apiAuthMiddleware = authMiddleware.Authenticate()
	} else {
		// No auth configured: open API for single-user deployments
		log.Println("Warning: no auth configured, API is open")
		apiAuthMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "tonelift-api",
			"time":    time.Now().UTC().Format(time.RFC3339),
			"services": fiber.Map{
				"engine":  ffmpegEngine.Available(),
				"redis":   redisAvailable,
				"storage": storageClient != nil,
				"events":  eventSink != nil,
				"auth":    jwksVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by the gateway)
	app.Get("/auth/verify", authHandler.Verify)

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Enhancement routes
	enhance := api.Group("/enhance")
	enhance.Post("/start", rateLimiter.EnhanceLimit(cfg.RateLimit.EnhancePerHour), enhanceHandler.Start)
	enhance.Get("/status/:jobId", enhanceHandler.Status)
	enhance.Get("/output/:jobId", enhanceHandler.Output)
	enhance.Post("/feedback/:jobId", rateLimiter.FeedbackLimit(cfg.RateLimit.FeedbackPerHour), enhanceHandler.Feedback)

	// Event log routes
	api.Get("/events/recent", eventsHandler.Recent)

	// Upload routes
	upload := api.Group("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour))
	upload.Post("/track", uploadHandler.Track)
	upload.Delete("/track/:trackId", uploadHandler.DeleteTrack)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, enhanceWorker *worker.EnhanceWorker) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"enhance": 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeEnhance, enhanceWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
