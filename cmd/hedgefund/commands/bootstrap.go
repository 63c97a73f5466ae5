package commands

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/wonny/hedgefund/internal/agents"
	"github.com/wonny/hedgefund/internal/backtest"
	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/marketdata"
	"github.com/wonny/hedgefund/internal/runs"
	"github.com/wonny/hedgefund/internal/scheduler"
	"github.com/wonny/hedgefund/internal/scheduler/jobs"
	"github.com/wonny/hedgefund/internal/validation"
	"github.com/wonny/hedgefund/pkg/config"
	"github.com/wonny/hedgefund/pkg/database"
	"github.com/wonny/hedgefund/pkg/logger"
	"github.com/wonny/hedgefund/pkg/redis"
)

// services is everything a command may need, built once from the environment
type services struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB // nil without DATABASE_URL
	redis  *redis.Client
	prices contracts.PriceSource
	agents *agents.Factory
	store  contracts.RunStore
}

// loadConfig applies the global flags on top of config.Load
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		if err := godotenv.Load(configFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", configFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newServices connects storage and builds the price source and agent factory
func newServices(ctx context.Context) (*services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg)

	s := &services{cfg: cfg, log: log}

	// 1. Database (optional)
	if cfg.Database.Enabled() {
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		s.db = db
		s.store = runs.NewPostgresStore(db.Pool)
		log.Info("Connected to database")
	} else {
		s.store = runs.NewMemoryStore()
		log.Warn("DATABASE_URL not set, runs are kept in memory")
	}

	// 2. Redis (disabled unless REDIS_ENABLED)
	rc, err := redis.New(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	s.redis = rc

	// 3. Price source
	if s.prices, err = marketdata.NewSource(cfg, s.db, rc, log); err != nil {
		s.Close()
		return nil, fmt.Errorf("price source: %w", err)
	}

	// 4. Analysts
	var analysts *agents.Config
	if cfg.Agent.AnalystsConfig != "" {
		if analysts, _, err = agents.LoadConfig(cfg.Agent.AnalystsConfig); err != nil {
			s.Close()
			return nil, err
		}
	}
	if s.agents, err = agents.NewFactory(cfg, analysts, log); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Close releases connections
func (s *services) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

func (s *services) defaults() validation.Defaults {
	return validation.Defaults{
		ModelName:     s.cfg.Defaults.ModelName,
		ModelProvider: s.cfg.Defaults.ModelProvider,
		AnalysisCash:  s.cfg.Defaults.AnalysisCash,
	}
}

func (s *services) engine() *backtest.Engine {
	return backtest.NewEngine(s.prices, s.agents.Lookback(), s.cfg.Engine.SkipWeekends, s.log)
}

// newScheduler registers the maintenance jobs
func (s *services) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(s.log)
	if err := sched.AddJob(jobs.NewRunRetentionJob(s.store, s.cfg.Engine.RunRetention, s.log)); err != nil {
		return nil, fmt.Errorf("register retention job: %w", err)
	}
	return sched, nil
}
