package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	pkgvalidator "github.com/knowwhyhq/knowwhy/pkg/validator"

	"github.com/knowwhyhq/knowwhy/internal/adapter/handler"
	"github.com/knowwhyhq/knowwhy/internal/adapter/repository"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/cache"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/connector"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/database"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/external/oauth"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/storage"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/vectorstore"
	"github.com/knowwhyhq/knowwhy/internal/usecase/analysis"
	"github.com/knowwhyhq/knowwhy/internal/usecase/auth"
	"github.com/knowwhyhq/knowwhy/internal/usecase/search"
	"github.com/knowwhyhq/knowwhy/internal/usecase/syncer"
	"github.com/knowwhyhq/knowwhy/pkg/config"
	"github.com/knowwhyhq/knowwhy/pkg/jwt"
	"github.com/knowwhyhq/knowwhy/pkg/llm"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Echo instance
	e := echo.New()
	e.Validator = pkgvalidator.New()
	e.HideBanner = true
	e.HidePort = false

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Set-Cookie", "Cookie"},
		AllowCredentials: true,
	}))

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	if cfg.Database.AutoMigrate {
		if cfg.Server.Environment == "production" {
			log.Fatalf("AutoMigrate is enabled in production. Disable DB_AUTO_MIGRATE or manage schema with sql-migrate.")
		}
		log.Println("🔄 Running migrations...")
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// State store: Redis when reachable, in-memory otherwise
	var stateStore oauth.Store
	if redisStore, err := cache.NewRedisStore(cfg); err != nil {
		log.Printf("⚠️  Redis unavailable, using in-memory state store: %v", err)
		stateStore = cache.NewMemoryStore()
	} else {
		log.Println("📦 Connected to Redis")
		stateStore = redisStore
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	decisionRepo := repository.NewDecisionRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	integrationRepo := repository.NewIntegrationRepository(db)
	webhookLogRepo := repository.NewWebhookLogRepository(db)

	// OAuth and sessions
	googleProvider := oauth.NewGoogleProvider(
		cfg.OAuth.Google.ClientID,
		cfg.OAuth.Google.ClientSecret,
		cfg.OAuth.Google.RedirectURL,
	)
	stateManager := oauth.NewStateManager(stateStore)
	jwtManager := jwt.NewManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	oauthService := auth.NewOAuthService(userRepo, sessionRepo, googleProvider, stateManager, jwtManager)

	// LLM client and analysis pipeline
	log.Println("🤖 Initializing analysis pipeline...")
	llmClient := llm.NewClient(&cfg.LLM)
	limiter := rate.NewLimiter(rate.Limit(cfg.LLM.RatePerSecond), cfg.LLM.RateBurst)
	analyzer := analysis.NewService(llmClient, limiter, logger)

	// Connectors
	slackConnector := connector.NewSlackConnector(integrationRepo, cfg.Sync.RecencyWindow)
	gitlabConnector := connector.NewGitLabConnector(integrationRepo, cfg.Sync.RecencyWindow, cfg.GitLab.Timeout)
	meetConnector := connector.NewMeetConnector(userRepo, meetingRepo, googleProvider, cfg.Sync.RecencyWindow)
	sources := []connector.Source{slackConnector, gitlabConnector, meetConnector}

	// Semantic index is optional; a failed connection degrades search to
	// keyword only instead of blocking startup
	var index *vectorstore.QdrantIndex
	if cfg.Vector.Enabled {
		index, err = vectorstore.NewQdrantIndex(&cfg.Vector, llmClient, logger)
		if err != nil {
			log.Printf("⚠️  Semantic index unavailable: %v", err)
			index = nil
		} else {
			log.Println("📇 Semantic index connected")
		}
	}

	// Transcript archive is optional as well
	var archive *storage.TranscriptArchive
	if cfg.Storage.Enabled {
		archive, err = storage.NewTranscriptArchive(&cfg.Storage)
		if err != nil {
			log.Printf("⚠️  Transcript archive unavailable: %v", err)
			archive = nil
		} else {
			log.Println("📦 Transcript archive connected")
		}
	}

	var syncIndex syncer.Index
	var searchIndex search.VectorIndex
	if index != nil {
		syncIndex = index
		searchIndex = index
	}
	var syncArchive syncer.Archive
	if archive != nil {
		syncArchive = archive
	}

	syncService := syncer.NewService(
		decisionRepo,
		integrationRepo,
		meetingRepo,
		analyzer,
		sources,
		syncIndex,
		syncArchive,
		slackConnector,
		cfg.Sync,
		logger,
	)
	searchService := search.NewService(decisionRepo, searchIndex, llmClient, logger)

	// Handlers
	authHandler := handler.NewAuth(oauthService, logger)
	decisionHandler := handler.NewDecision(decisionRepo, searchService, logger)
	meetingHandler := handler.NewMeeting(meetingRepo, syncService, meetConnector, logger)
	integrationHandler := handler.NewIntegration(integrationRepo, slackConnector, gitlabConnector, cfg, logger)
	syncHandler := handler.NewSync(syncService, cfg, logger)
	slackWebhook := handler.NewSlackWebhook(integrationRepo, webhookLogRepo, syncService, cfg, logger)
	gitlabWebhook := handler.NewGitLabWebhook(integrationRepo, webhookLogRepo, syncService, gitlabConnector, cfg, logger)

	router := handler.NewRouter(
		cfg,
		oauthService,
		authHandler,
		decisionHandler,
		meetingHandler,
		integrationHandler,
		syncHandler,
		slackWebhook,
		gitlabWebhook,
	)
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	if index != nil {
		index.Close()
	}

	log.Println("✅ Server stopped gracefully")
}
