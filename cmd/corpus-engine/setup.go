package main

import (
	"go.uber.org/zap"

	"github.com/blustreamin/corpus-engine/internal/cache"
	"github.com/blustreamin/corpus-engine/internal/config"
	"github.com/blustreamin/corpus-engine/internal/corpus"
	"github.com/blustreamin/corpus-engine/internal/metricscalc"
	"github.com/blustreamin/corpus-engine/internal/provider"
	"github.com/blustreamin/corpus-engine/internal/ratelimit"
	"github.com/blustreamin/corpus-engine/internal/service"
	"github.com/blustreamin/corpus-engine/internal/store"
	"github.com/blustreamin/corpus-engine/pkg/log"
	"github.com/blustreamin/corpus-engine/pkg/migrations"
)

// engine bundles the fully wired service graph. One rate-limit executor is
// built here and shared by everything that talks to the provider.
type engine struct {
	cfg          *config.Config
	store        store.Store
	cache        *cache.Runtime
	jobs         *service.JobService
	audit        *service.AuditService
	flush        *service.FlushService
	rebuild      *service.RebuildService
	repair       *service.RepairService
	preflight    *service.PreflightService
	orchestrator *service.Orchestrator
}

func newEngine(operator string) (*engine, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}

	log.Setup(cfg.Service.LogLevel)
	zap.S().Infow("configuration loaded", "project", cfg.Service.ProjectID, "db_type", cfg.Database.Type)

	db, err := store.InitDB(cfg)
	if err != nil {
		return nil, err
	}

	s := store.NewStore(db)
	if err := s.InitialMigration(); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := migrations.MigrateStore(db, gooseDialect(cfg.Database.Type), cfg.Service.MigrationFolder); err != nil {
		_ = s.Close()
		return nil, err
	}

	runtimeCache := cache.NewRuntime()
	providerClient := provider.NewClient(cfg)
	executor := ratelimit.NewExecutor(ratelimit.Config{
		MaxRPM:     cfg.Provider.MaxRPM,
		MaxRetries: cfg.Provider.MaxRetries,
	})

	jobs := service.NewJobService(s)
	audit := service.NewAuditService(s, cfg.Service.ProjectID)
	flush := service.NewFlushService(s, runtimeCache, cfg.Service.ProjectID, operator)
	rebuild := service.NewRebuildService(s, providerClient, executor, metricscalc.NewDeterministic())
	repair := service.NewRepairService(s, rebuild)
	preflight := service.NewPreflightService(s, providerClient)
	orchestrator := service.NewOrchestrator(
		jobs,
		preflight,
		flush,
		rebuild,
		audit,
		cfg.Provider.HasUsableCredentials,
		corpus.CoreCategories,
		cfg.Service.ProjectID,
	)

	return &engine{
		cfg:          cfg,
		store:        s,
		cache:        runtimeCache,
		jobs:         jobs,
		audit:        audit,
		flush:        flush,
		rebuild:      rebuild,
		repair:       repair,
		preflight:    preflight,
		orchestrator: orchestrator,
	}, nil
}

func (e *engine) Close() {
	if err := e.store.Close(); err != nil {
		zap.S().Warnw("failed to close store", "error", err)
	}
}

func gooseDialect(dbType string) string {
	if dbType == "sqlite" {
		return "sqlite3"
	}
	return "postgres"
}
