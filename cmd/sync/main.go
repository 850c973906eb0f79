package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/knowwhyhq/knowwhy/internal/adapter/repository"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/connector"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/database"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/external/oauth"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/storage"
	"github.com/knowwhyhq/knowwhy/internal/infrastructure/vectorstore"
	"github.com/knowwhyhq/knowwhy/internal/usecase/analysis"
	"github.com/knowwhyhq/knowwhy/internal/usecase/syncer"
	"github.com/knowwhyhq/knowwhy/pkg/config"
	"github.com/knowwhyhq/knowwhy/pkg/llm"
)

// One-shot sweep over every user with an active integration. Meant to run
// from cron or a scheduler; exits non-zero only on setup failure, individual
// user errors are logged and skipped.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	userRepo := repository.NewUserRepository(db)
	decisionRepo := repository.NewDecisionRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	integrationRepo := repository.NewIntegrationRepository(db)

	llmClient := llm.NewClient(&cfg.LLM)
	limiter := rate.NewLimiter(rate.Limit(cfg.LLM.RatePerSecond), cfg.LLM.RateBurst)
	analyzer := analysis.NewService(llmClient, limiter, logger)

	googleProvider := oauth.NewGoogleProvider(
		cfg.OAuth.Google.ClientID,
		cfg.OAuth.Google.ClientSecret,
		cfg.OAuth.Google.RedirectURL,
	)

	slackConnector := connector.NewSlackConnector(integrationRepo, cfg.Sync.RecencyWindow)
	gitlabConnector := connector.NewGitLabConnector(integrationRepo, cfg.Sync.RecencyWindow, cfg.GitLab.Timeout)
	meetConnector := connector.NewMeetConnector(userRepo, meetingRepo, googleProvider, cfg.Sync.RecencyWindow)
	sources := []connector.Source{slackConnector, gitlabConnector, meetConnector}

	var syncIndex syncer.Index
	if cfg.Vector.Enabled {
		index, err := vectorstore.NewQdrantIndex(&cfg.Vector, llmClient, logger)
		if err != nil {
			log.Printf("⚠️  Semantic index unavailable: %v", err)
		} else {
			defer index.Close()
			syncIndex = index
		}
	}

	var syncArchive syncer.Archive
	if cfg.Storage.Enabled {
		archive, err := storage.NewTranscriptArchive(&cfg.Storage)
		if err != nil {
			log.Printf("⚠️  Transcript archive unavailable: %v", err)
		} else {
			syncArchive = archive
		}
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Println("🔄 Starting sweep...")
	reports, err := syncService.SyncAll(ctx)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	persisted := 0
	for _, report := range reports {
		for _, source := range report.Sources {
			persisted += source.Persisted
		}
	}
	log.Printf("✅ Sweep finished: %d users, %d decisions persisted", len(reports), persisted)
}
