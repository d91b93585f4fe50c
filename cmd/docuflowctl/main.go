// Package main is docuflowctl, the operator CLI for migrations, reindexing and housekeeping.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docuflow/backend/config"
	"github.com/docuflow/backend/pkg/database"
)

var (
	verbose bool

	okMark   = color.New(color.FgGreen).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
	errMark  = color.New(color.FgRed).SprintFunc()
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "docuflowctl",
		Short:         "DocuFlow operator tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reindexCmd())
	rootCmd.AddCommand(purgeSharesCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, errMark("error:"), err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// connect loads configuration and opens the database pool.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), 2, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, pool, logger, nil
}
