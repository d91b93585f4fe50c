package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/docuflow/backend/config"
	"github.com/docuflow/backend/internal/auth"
)

func tokenCmd() *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token [user id]",
		Short: "Mint a session token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Server.IsProduction() {
				return fmt.Errorf("refusing to mint tokens with ENVIRONMENT=production")
			}
			token, err := auth.NewVerifier(cfg.Supabase.JWTSecret).Issue(userID, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "dev@example.com", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
