package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/hedgefund/pkg/database"
	"github.com/wonny/hedgefund/pkg/logger"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "PostgreSQL maintenance",
	Long: `Check the database connection or apply the schema.

Example:
  go run ./cmd/hedgefund db status
  go run ./cmd/hedgefund db migrate`,
}

var (
	dbStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Connection test and pool statistics",
		RunE:  runDBStatus,
	}

	dbMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create the runs, snapshots and prices tables",
		RunE:  runDBMigrate,
	}
)

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbMigrateCmd)
}

// openDB connects without building the rest of the services
func openDB(ctx context.Context) (*database.DB, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Database.Enabled() {
		return nil, nil, fmt.Errorf("DATABASE_URL is not set")
	}
	fmt.Printf("✅ Config loaded (ENV: %s)\n", cfg.Env)
	fmt.Printf("   Database URL: %s\n\n", maskPassword(cfg.Database.URL))

	db, err := database.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	return db, logger.New(cfg), nil
}

func runDBStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Database Connection Test ===")

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	db, _, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}

	fmt.Println("✅ Health Check Results:")
	PrintKeyValue("Healthy", fmt.Sprint(status.Healthy), 20)
	PrintKeyValue("Response Time", status.ResponseTime.String(), 20)
	PrintKeyValue("Timestamp", status.Timestamp.Format(time.RFC3339), 20)
	fmt.Println()

	fmt.Println("📊 Connection Pool Statistics:")
	PrintKeyValue("Max Connections", fmt.Sprint(status.Stats.MaxConns), 20)
	PrintKeyValue("Total Connections", fmt.Sprint(status.Stats.TotalConns), 20)
	PrintKeyValue("Acquired", fmt.Sprint(status.Stats.AcquiredConns), 20)
	PrintKeyValue("Idle", fmt.Sprint(status.Stats.IdleConns), 20)
	return nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	db, log, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("❌ Migration failed: %w", err)
	}
	log.Info("Schema migrated")
	PrintSuccess("Schema is up to date")
	return nil
}

// maskPassword hides the password of a database URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	pw, ok := u.User.Password()
	if !ok {
		return raw
	}
	if masked := strings.Replace(raw, ":"+pw+"@", ":***@", 1); masked != raw {
		return masked
	}
	return u.Redacted()
}
