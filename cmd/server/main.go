package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"astba/training-app/internal/api"
	"astba/training-app/internal/config"
	"astba/training-app/internal/llm"
	"astba/training-app/internal/logger"
	"astba/training-app/internal/plan"
	"astba/training-app/internal/repository"
	"astba/training-app/internal/repository/memory"
	"astba/training-app/internal/repository/mongo"
	"astba/training-app/internal/service"
	"astba/training-app/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

// repositories groups the structure store behind whichever driver is configured.
type repositories struct {
	trainings  repository.TrainingRepository
	levels     repository.LevelRepository
	sessions   repository.SessionRepository
	attendance repository.AttendanceRepository
	audit      repository.AuditLogRepository
	tx         repository.TxManager
	close      func()
}

// @title Training Plan API
// @version 1.0
// @description Training structures and AI-drafted training plans.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: could not load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: could not build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("starting training plan server", "address", cfg.Server.Address, "db_driver", cfg.Database.Driver)

	if cfg.JWT.Secret == "" {
		log.Fatal("jwt.secret is required")
	}

	// --- Structure store ---
	repos, err := openRepositories(cfg.Database, log)
	if err != nil {
		log.Fatal("could not open structure store", "error", err)
	}
	defer repos.close()

	// --- Plan snapshot storage ---
	var snapshots storage.ObjectStorage
	if cfg.S3.BucketName != "" {
		snapshots, err = storage.NewS3Storage(cfg.S3, log)
		if err != nil {
			log.Fatal("failed to initialize S3 storage", "error", err)
		}
	} else {
		log.Warn("s3.bucket_name is empty, applied plans will not be archived")
	}

	// --- Plan tooling ---
	schema, err := plan.LoadSchema()
	if err != nil {
		log.Fatal("failed to compile training plan schema", "error", err)
	}
	prompts, err := plan.LoadPrompts()
	if err != nil {
		log.Fatal("failed to load prompt templates", "error", err)
	}
	gateway := llm.NewClient(cfg.LLM, log)
	if !cfg.LLM.StubEnabled && cfg.LLM.APIKey == "" {
		log.Warn("llm.api_key is empty, plan generation will be rejected", "stub_enabled", false)
	}

	// --- Services ---
	auditService := service.NewAuditService(repos.audit, log)
	defer auditService.Flush()
	structureService := service.NewStructureService(repos.trainings, repos.levels, repos.sessions, repos.attendance)
	trainingService := service.NewTrainingService(repos.trainings, repos.levels, repos.sessions, structureService, auditService, repos.tx)
	aiPlanService := service.NewAIPlanService(service.AIPlanServiceDeps{
		Trainings:      repos.trainings,
		Levels:         repos.levels,
		Sessions:       repos.sessions,
		Tx:             repos.tx,
		Structure:      structureService,
		Audit:          auditService,
		Gateway:        gateway,
		Limiter:        service.NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window),
		Schema:         schema,
		Prompts:        prompts,
		Storage:        snapshots,
		Logger:         log,
		FallbackPolicy: service.ParseFallbackPolicy(cfg.LLM.FallbackPolicy),
	})

	// --- Initialize Gin Engine ---
	if cfg.Log.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestIDMiddleware(), api.RequestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.SetupRoutes(router, cfg.JWT.Secret, log, trainingService, aiPlanService, auditService)

	// --- Start HTTP Server ---
	// Generation may make two sequential model calls; the write timeout leaves room for both.
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2*cfg.LLM.Timeout() + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("ListenAndServe error", "error", err)
		}
	}()
	log.Info("server listening", "address", cfg.Server.Address)

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	log.Info("server exiting")
}

func openRepositories(cfg config.DatabaseConfig, log *logger.Logger) (*repositories, error) {
	if cfg.Driver == "memory" {
		log.Warn("using in-memory structure store, data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			trainings:  store.Trainings(),
			levels:     store.Levels(),
			sessions:   store.Sessions(),
			attendance: store.Attendance(),
			audit:      store.AuditLogs(),
			tx:         store.TxManager(),
			close:      func() {},
		}, nil
	}

	client, err := mongo.ConnectDB(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	db := client.Database(cfg.Name)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	for name, ensure := range map[string]func(context.Context, *mongodriver.Database) error{
		"trainings":  mongo.EnsureTrainingIndexes,
		"levels":     mongo.EnsureLevelIndexes,
		"sessions":   mongo.EnsureSessionIndexes,
		"attendance": mongo.EnsureAttendanceIndexes,
		"audit_logs": mongo.EnsureAuditLogIndexes,
	} {
		if err := ensure(ctx, db); err != nil {
			// Unique indexes back the structure invariants; refuse to start without them.
			_ = mongo.DisconnectDB(client)
			return nil, fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}
	log.Info("database connection established", "database", cfg.Name)

	return &repositories{
		trainings:  mongo.NewMongoTrainingRepository(db),
		levels:     mongo.NewMongoLevelRepository(db),
		sessions:   mongo.NewMongoSessionRepository(db),
		attendance: mongo.NewMongoAttendanceRepository(db),
		audit:      mongo.NewMongoAuditLogRepository(db),
		tx:         mongo.NewTxManager(client),
		close: func() {
			if err := mongo.DisconnectDB(client); err != nil {
				log.Error("failed to disconnect MongoDB", "error", err)
			}
		},
	}, nil
}
