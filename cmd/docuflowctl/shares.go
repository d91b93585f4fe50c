package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/docuflow/backend/internal/documents"
)

func purgeSharesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-shares",
		Short: "Clear expired document share links",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, _, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := documents.NewRepository(pool).PurgeExpiredShares(ctx, time.Now())
			if err != nil {
				return err
			}
			cmd.Println(okMark("✓"), n, "expired share links cleared")
			return nil
		},
	}
}
