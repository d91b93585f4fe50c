package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/docuflow/backend/internal/documents"
	"github.com/docuflow/backend/pkg/queue"
	"github.com/docuflow/backend/pkg/redis"
)

type statsRow struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

func statsCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show document counts by status and queue depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, logger, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			counts, err := documents.NewRepository(pool).CountByStatus(ctx)
			if err != nil {
				return err
			}
			rows := make([]statsRow, 0, len(counts)+2)
			for status, n := range counts {
				rows = append(rows, statsRow{Name: "documents." + string(status), Value: int64(n)})
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

			if cfg.Redis.Addr != "" {
				rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
				if err != nil {
					cmd.Println(warnMark("!"), "queue depth unavailable:", err)
				} else {
					defer rdb.Close()
					pending, dead, err := queue.NewQueue(rdb.Client, logger).Depth(ctx)
					if err != nil {
						return err
					}
					rows = append(rows, statsRow{Name: "queue.pending", Value: pending}, statsRow{Name: "queue.dead", Value: dead})
				}
			}
			return printStats(cmd, output, rows)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: table (default) or json")
	return cmd
}

func printStats(cmd *cobra.Command, output string, rows []statsRow) error {
	switch output {
	case "", "table":
		tw := table.NewWriter()
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateColumns = false
		tw.Style().Options.SeparateHeader = false
		tw.AppendHeader(table.Row{"METRIC", "VALUE"})
		for _, r := range rows {
			tw.AppendRow(table.Row{r.Name, r.Value})
		}
		cmd.Printf("%s\n", tw.Render())
	case "json":
		out, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		cmd.Println(string(out))
	default:
		return fmt.Errorf("unknown output format: %s", output)
	}
	return nil
}
