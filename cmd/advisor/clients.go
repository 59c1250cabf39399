package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/david/grant-advisor/internal/app"
	"github.com/david/grant-advisor/internal/export"
	"github.com/david/grant-advisor/internal/ingest"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "List client profiles",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			clients, err := a.Store.ListClients(ctx)
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Name", "Region", "Type", "Years", "Stage", "Keywords", "Pinned"})
			for _, c := range clients {
				pinned := ""
				if c.Pinned {
					pinned = "*"
				}
				t.AppendRow(table.Row{c.ID, c.Name, c.Region, c.BusinessType, c.YearsOperating, c.Stage, strings.Join(c.IndustryKeywords, ", "), pinned})
			}
			t.Render()
			return nil
		})
	},
}

var importClientsCmd = &cobra.Command{
	Use:   "import-clients",
	Short: "Load client profiles from a portfolio CSV export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			return fmt.Errorf("--file is required")
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			clients, err := ingest.LoadClientsCSV(f, a.Advisor.Today())
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			for _, c := range clients {
				if _, err := a.Store.UpsertClient(ctx, c); err != nil {
					return fmt.Errorf("save client %q: %w", c.Name, err)
				}
			}
			a.Log.Info("clients imported", zap.String("file", path), zap.Int("count", len(clients)))
			return nil
		})
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score the catalog for one client",
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, err := clientFlag(cmd)
		if err != nil {
			return err
		}
		format, err := export.ParseFormat(cmd.Flag("format").Value.String())
		if err != nil {
			return err
		}
		top, _ := cmd.Flags().GetInt("top")
		all, _ := cmd.Flags().GetBool("all")

		return withApp(func(ctx context.Context, a *app.App) error {
			if !cmd.Flags().Changed("top") {
				top = a.Config.Matching.TopN
			}
			got, err := a.Advisor.Matches(ctx, id, top, all)
			if err != nil {
				return err
			}
			rows := export.MatchRows(id, got.Results(), got.Reviews, a.Advisor.Today())
			return export.Write(os.Stdout, format, export.MatchHeader, rows)
		})
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Ask the language model for a ranked shortlist for one client",
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, err := clientFlag(cmd)
		if err != nil {
			return err
		}
		format, err := export.ParseFormat(cmd.Flag("format").Value.String())
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			recs, err := a.Advisor.Recommend(ctx, id)
			if err != nil {
				return err
			}
			return export.Write(os.Stdout, format, export.RecommendationHeader, export.RecommendationRows(recs))
		})
	},
}

func init() {
	importClientsCmd.Flags().String("file", "", "portfolio CSV file")

	addClientFlag(scoreCmd)
	addFormatFlag(scoreCmd)
	scoreCmd.Flags().IntP("top", "n", 10, "number of matches to show, 0 for all (default from matching.top_n)")
	scoreCmd.Flags().Bool("all", false, "include infeasible announcements")

	addClientFlag(recommendCmd)
	addFormatFlag(recommendCmd)

	rootCmd.AddCommand(clientsCmd, importClientsCmd, scoreCmd, recommendCmd)
}
