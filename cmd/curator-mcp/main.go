package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/common"
	"github.com/ternarybob/curator/internal/queue"
	"github.com/ternarybob/curator/internal/services/analyzer"
	"github.com/ternarybob/curator/internal/services/auth"
	"github.com/ternarybob/curator/internal/services/cache"
	"github.com/ternarybob/curator/internal/services/categorize"
	"github.com/ternarybob/curator/internal/services/cleanup"
	"github.com/ternarybob/curator/internal/services/gmail"
	"github.com/ternarybob/curator/internal/services/scheduler"
	"github.com/ternarybob/curator/internal/services/tools"
	"github.com/ternarybob/curator/internal/storage"
	"github.com/ternarybob/curator/internal/worker"
)

// terminalJobRetention is how long completed and failed jobs are kept before
// the startup sweep removes them.
const terminalJobRetention = 30 * 24 * time.Hour

func main() {
	configPath := os.Getenv("CURATOR_CONFIG")
	if configPath == "" {
		configPath = "curator.toml"
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Console logging goes to stderr - stdout carries the MCP framing.
	logger := common.InitLogger(config)

	// Storage: one database per user plus a system database for sessions.
	factory, err := storage.NewFactory(logger, &config.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize user database factory")
	}
	defer factory.Close()

	systemDB, err := storage.NewBadgerDB(logger, filepath.Join(config.Storage.Path, "system"), false)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open system database")
	}
	defer systemDB.Close()
	sessionStore := storage.NewSessionStore(systemDB, logger)

	jobStore, err := storage.NewJobStore(factory, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize job store")
	}
	defer jobStore.Close()

	// Startup maintenance: fail orphaned in-progress jobs, sweep old
	// terminal jobs and dead sessions.
	if reaped, err := jobStore.ReapOrphans(); err != nil {
		logger.Warn().Err(err).Msg("Orphan reap failed")
	} else if reaped > 0 {
		logger.Info().Int("reaped", reaped).Msg("Orphaned jobs failed on startup")
	}
	sweepTerminalJobs(jobStore, factory, logger)
	if _, err := sessionStore.PurgeExpired(time.Now().UTC()); err != nil {
		logger.Warn().Err(err).Msg("Session purge failed")
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cacheService := cache.NewService(rootCtx, logger, time.Hour, time.Minute)

	analyzers, _, err := analyzer.Build(logger, config, cacheService)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build analyzers")
	}
	orchestrator := categorize.NewOrchestrator(logger, analyzers, cacheService, &config.Analysis)

	authService := auth.NewService(logger, sessionStore, &config.Auth)

	encryptionKey := config.Auth.TokenEncryptionKey
	if encryptionKey == "" {
		if config.IsProduction() {
			logger.Fatal().Msg("TOKEN_ENCRYPTION_KEY is required in production")
		}
		logger.Warn().Msg("TOKEN_ENCRYPTION_KEY not set - using insecure development key")
		encryptionKey = "curator-development-key"
	}
	vault, err := auth.NewTokenVault(logger, config.Storage.Path, encryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize token vault")
	}
	gmailProvider := gmail.NewProvider(logger, vault, &config.Gmail)

	jobQueue := queue.New()
	cleanupService := cleanup.NewService(logger, jobStore, jobQueue)
	schedulerService := scheduler.NewService(logger, factory, jobStore, jobQueue)

	pool := worker.NewPool(jobQueue, jobStore, logger, config.Queue.Workers, config.Queue.PollIntervalDuration())
	pool.RegisterExecutor(worker.NewCategorizeExecutor(logger, factory, orchestrator, jobStore))
	pool.RegisterExecutor(worker.NewCleanupExecutor(logger, factory, cleanupService, gmailProvider,
		filepath.Join(config.Storage.Path, "exports")))

	if _, err := pool.RecoverPending(factory); err != nil {
		logger.Warn().Err(err).Msg("Pending job recovery failed")
	}
	pool.Start()
	defer pool.Stop()

	if config.Scheduler.Enabled {
		if err := schedulerService.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start scheduler")
		}
		defer schedulerService.Stop()
	}

	toolsService := tools.NewService(logger, tools.Deps{
		Factory:   factory,
		Jobs:      jobStore,
		Queue:     jobQueue,
		Cache:     cacheService,
		Auth:      authService,
		Cleanup:   cleanupService,
		Scheduler: schedulerService,
		Gmail:     gmailProvider,
		Config:    config,
	})

	mcpServer := server.NewMCPServer(
		"curator",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createAuthenticateTool(), handleAuthenticate(toolsService, logger))
	mcpServer.AddTool(createListEmailsTool(), handleListEmails(toolsService, logger))
	mcpServer.AddTool(createSearchEmailsTool(), handleSearchEmails(toolsService, logger))
	mcpServer.AddTool(createGetEmailTool(), handleGetEmail(toolsService, logger))
	mcpServer.AddTool(createSyncEmailsTool(), handleSyncEmails(toolsService, logger))
	mcpServer.AddTool(createCategorizeEmailsTool(), handleCategorizeEmails(toolsService, logger))
	mcpServer.AddTool(createGetEmailStatsTool(), handleGetEmailStats(toolsService, logger))
	mcpServer.AddTool(createArchiveEmailsTool(), handleArchiveEmails(toolsService, logger))
	mcpServer.AddTool(createDeleteEmailsTool(), handleDeleteEmails(toolsService, logger))
	mcpServer.AddTool(createGetJobStatusTool(), handleGetJobStatus(toolsService, logger))
	mcpServer.AddTool(createListJobsTool(), handleListJobs(toolsService, logger))
	mcpServer.AddTool(createCreateCleanupPolicyTool(), handleCreateCleanupPolicy(toolsService, logger))
	mcpServer.AddTool(createUpdateCleanupPolicyTool(), handleUpdateCleanupPolicy(toolsService, logger))
	mcpServer.AddTool(createListCleanupPoliciesTool(), handleListCleanupPolicies(toolsService, logger))
	mcpServer.AddTool(createDeleteCleanupPolicyTool(), handleDeleteCleanupPolicy(toolsService, logger))
	mcpServer.AddTool(createTriggerCleanupTool(), handleTriggerCleanup(toolsService, logger))
	mcpServer.AddTool(createGetCleanupRecommendationsTool(), handleGetCleanupRecommendations(toolsService, logger))
	mcpServer.AddTool(createCreateCleanupScheduleTool(), handleCreateCleanupSchedule(toolsService, logger))
	mcpServer.AddTool(createSaveSearchTool(), handleSaveSearch(toolsService, logger))
	mcpServer.AddTool(createListSavedSearchesTool(), handleListSavedSearches(toolsService, logger))
	mcpServer.AddTool(createListArchiveRecordsTool(), handleListArchiveRecords(toolsService, logger))
	mcpServer.AddTool(createSaveArchiveRuleTool(), handleSaveArchiveRule(toolsService, logger))
	mcpServer.AddTool(createListArchiveRulesTool(), handleListArchiveRules(toolsService, logger))

	logger.Info().
		Str("version", common.GetVersion()).
		Int("workers", config.Queue.Workers).
		Bool("multi_user", config.Auth.MultiUser).
		Msg("Starting MCP server on stdio")

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}

// sweepTerminalJobs removes terminal jobs past the retention window for
// every known user.
func sweepTerminalJobs(jobStore *storage.JobStore, factory *storage.Factory, logger arbor.ILogger) {
	users, err := factory.KnownUsers()
	if err != nil {
		logger.Warn().Err(err).Msg("Job sweep skipped - cannot list users")
		return
	}

	cutoff := time.Now().UTC().Add(-terminalJobRetention)
	total := 0
	for _, userID := range users {
		deleted, err := jobStore.DeleteOlderThan(userID, cutoff)
		if err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Msg("Job sweep failed for user")
			continue
		}
		total += deleted
	}
	if total > 0 {
		logger.Info().Int("deleted", total).Msg("Old terminal jobs swept")
	}
}
