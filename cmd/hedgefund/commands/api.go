package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/hedgefund/internal/api"
	"github.com/wonny/hedgefund/internal/api/handlers"
	"github.com/wonny/hedgefund/internal/backtest"
	"github.com/wonny/hedgefund/internal/hedgefund"
	"github.com/wonny/hedgefund/internal/runs"
	"github.com/wonny/hedgefund/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Start the HTTP API server.

ENGINE_MODE selects how backtests run:
  async  queue on the worker pool and return a run id (default)
  sync   simulate inline and return the full result
  lite   validate and echo, no simulation

Endpoints:
  GET    /                          - Liveness message
  GET    /health                    - Health check
  POST   /api/backtest              - Run or queue a backtest
  GET    /api/backtest              - Recent runs
  GET    /api/backtest/{id}         - Run result
  DELETE /api/backtest/{id}         - Cancel a run
  GET    /api/backtest/{id}/stream  - Websocket progress stream
  POST   /api/hedge-fund            - Trading decisions for today
  GET    /api/analysts              - Available analysts
  GET    /api/system/jobs           - Scheduler job stats

Example:
  go run ./cmd/hedgefund api
  go run ./cmd/hedgefund api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default PORT or 5000)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== AI Hedge Fund API Server ===")

	ctx := context.Background()

	// 1. Config, storage, prices and analysts
	s, err := newServices(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	cfg, log := s.cfg, s.log
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log.WithFields(map[string]interface{}{
		"port":   cfg.Port,
		"env":    cfg.Env,
		"mode":   cfg.Engine.Mode,
		"source": cfg.MarketData.Source,
	}).Info("Initializing API server")

	// 2. Run manager
	manager := runs.NewManager(s.engine(), s.store, cfg.Engine.Workers, cfg.Engine.QueueSize, cfg.Engine.RunTimeout, log)
	manager.Start()

	// 3. Scheduler
	sched, err := s.newScheduler()
	if err != nil {
		return err
	}
	sched.Start()

	// 4. Handlers
	defaults := s.defaults()
	h := api.Handlers{
		Backtest: handlers.NewBacktestHandler(cfg.Engine.Mode, defaults, s.agents, manager,
			backtest.NewLiteEngine(log), log),
		HedgeFund: handlers.NewHedgeFundHandler(cfg.Engine.Mode, defaults, s.agents,
			hedgefund.NewAnalyzer(s.prices, s.agents.Lookback(), log), hedgefund.NewLite(log), log),
		System: handlers.NewSystemHandler(cfg.Engine.Mode, s.agents, manager, sched, s.db, s.redis, log),
	}

	// 5. Router and server
	limit := api.RateLimit{
		Limiter:   redis.NewRateLimiter(s.redis, "hedgefund"),
		PerMinute: cfg.RateLimitPerMinute,
	}
	server := api.New(cfg, log, api.NewRouter(h, limit, log))

	// 6. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s (mode: %s)\n", cfg.Port, cfg.Engine.Mode)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	sched.Stop()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Run manager did not drain before the deadline")
	}

	log.Info("Server stopped")
	return nil
}
