package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"adminportal/requests/internal/config"
	"adminportal/requests/internal/db"
)

var (
	// Global flags
	dbURL string
	cfg   config.Config
)

var rootCmd = &cobra.Command{
	Use:   "portalctl",
	Short: "Administrative tooling for the request portal",
	Long: `portalctl manages the request portal database outside the HTTP service.

Commands:
  migrate  - apply the embedded schema
  seed     - provision the well-known accounts
  token    - mint an access token for an existing user`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cfg = config.Load()
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "Database connection URL (defaults to DATABASE_URL)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenCmd)
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	url := dbURL
	if url == "" {
		url = cfg.DatabaseURL
	}
	return db.NewPool(ctx, url)
}
