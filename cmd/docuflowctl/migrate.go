package main

import (
	"github.com/spf13/cobra"

	"github.com/docuflow/backend/pkg/database"
)

func migrateCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				names, err := database.MigrationNames()
				if err != nil {
					return err
				}
				for _, n := range names {
					cmd.Println(n)
				}
				return nil
			}
			ctx := cmd.Context()
			_, pool, _, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := database.Migrate(ctx, pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				cmd.Println(okMark("✓"), "database is up to date")
				return nil
			}
			for _, n := range applied {
				cmd.Println(okMark("✓"), "applied", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list migration files without connecting")
	return cmd
}
