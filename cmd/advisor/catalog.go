package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/david/grant-advisor/internal/app"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect announcements from one registry source or all of them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		source, _ := cmd.Flags().GetString("source")
		all, _ := cmd.Flags().GetBool("all")
		if (source == "") == !all {
			return fmt.Errorf("pass exactly one of --source or --all")
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			if all {
				results, err := a.Pipeline.IngestAll(ctx)
				ids := make([]string, 0, len(results))
				for id := range results {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					s := results[id]
					a.Log.Info("source finished", zap.String("source", id), zap.Int("found", s.TotalFound), zap.Int("saved", s.TotalSaved), zap.Int("errors", s.Errors))
				}
				return err
			}
			stats, err := a.Pipeline.IngestSource(ctx, source)
			if err != nil {
				return err
			}
			a.Log.Info("ingestion finished", zap.String("source", source), zap.Int("found", stats.TotalFound), zap.Int("saved", stats.TotalSaved), zap.Int("errors", stats.Errors))
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load announcements from a catalog CSV export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		source, _ := cmd.Flags().GetString("source")
		if path == "" {
			return fmt.Errorf("--file is required")
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			stats, err := a.Pipeline.ImportCSV(ctx, f, source)
			if err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}
			a.Log.Info("import finished", zap.String("file", path), zap.Int("found", stats.TotalFound), zap.Int("saved", stats.TotalSaved), zap.Int("errors", stats.Errors))
			return nil
		})
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent ingestion runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(func(ctx context.Context, a *app.App) error {
			runs, err := a.Store.RecentRuns(ctx, limit)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Source", "Status", "Found", "Saved", "Errors", "Duration", "Started At"})
			for _, r := range runs {
				duration := "Running..."
				if r.CompletedAt != nil {
					duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
				}
				t.AppendRow(table.Row{r.SourceID, r.Status, r.ItemsFound, r.ItemsSaved, r.Errors, duration, r.StartedAt.Local().Format("01-02 15:04:05")})
			}
			t.Render()
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog and portfolio counts",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			stats, err := a.Store.Stats(ctx)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(stats))
			for k := range stats {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			for _, k := range keys {
				t.AppendRow(table.Row{k, fmt.Sprint(stats[k])})
			}
			t.Render()
			return nil
		})
	},
}

func init() {
	collectCmd.Flags().String("source", "", "registry source id")
	collectCmd.Flags().Bool("all", false, "collect every enabled source")

	importCmd.Flags().String("file", "", "catalog CSV file")
	importCmd.Flags().String("source", "csv", "source channel for rows without one")

	runsCmd.Flags().Int("limit", 10, "number of runs to show")

	rootCmd.AddCommand(collectCmd, importCmd, runsCmd, statsCmd)
}
