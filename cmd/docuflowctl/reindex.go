package main

import (
	"github.com/spf13/cobra"

	"github.com/docuflow/backend/internal/ai"
	"github.com/docuflow/backend/internal/documents"
	"github.com/docuflow/backend/internal/worker"
)

func reindexCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Embed processed documents that have no embedding",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, logger, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			client, err := ai.New(ai.Config{
				APIKey:         cfg.OpenAI.APIKey,
				BaseURL:        cfg.OpenAI.BaseURL,
				EmbeddingModel: cfg.OpenAI.EmbeddingModel,
				MaxChars:       cfg.OpenAI.MaxContentChars,
			}, nil, logger)
			if err != nil {
				return err
			}
			res, err := worker.Reindex(ctx, documents.NewRepository(pool), client, limit, logger)
			if err != nil {
				return err
			}
			cmd.Println(okMark("✓"), res.Indexed, "documents indexed")
			if res.Failed > 0 {
				cmd.Println(warnMark("!"), res.Failed, "documents failed, rerun with -v for details")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 500, "maximum documents to embed")
	return cmd
}
