package main

import (
	"context"
	"fmt"
	"os"

	"github.com/david/grant-advisor/internal/advisor"
	"github.com/david/grant-advisor/internal/app"
	"github.com/david/grant-advisor/internal/export"
	"github.com/david/grant-advisor/internal/roadmap"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var roadmapCmd = &cobra.Command{
	Use:   "roadmap",
	Short: "Regenerate a client's roadmap from approved announcements and print it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, err := clientFlag(cmd)
		if err != nil {
			return err
		}
		format, err := export.ParseFormat(cmd.Flag("format").Value.String())
		if err != nil {
			return err
		}
		showDiff, _ := cmd.Flags().GetBool("diff")
		all, _ := cmd.Flags().GetBool("all")
		milestones, _ := cmd.Flags().GetBool("milestones")

		return withApp(func(ctx context.Context, a *app.App) error {
			prev, next, err := a.Advisor.RegenerateRoadmap(ctx, id)
			if err != nil {
				return err
			}
			today := a.Advisor.Today()
			shown := next
			if !all {
				shown = roadmap.Window(next, today, advisor.RoadmapMonths)
			}
			if err := export.Write(os.Stdout, format, export.RoadmapHeader, export.RoadmapRows(id, shown, today)); err != nil {
				return err
			}

			if showDiff {
				diff := roadmap.Diff(roadmap.Render(prev), roadmap.Render(next))
				if diff == "" {
					fmt.Println("\nroadmap unchanged")
				} else {
					fmt.Printf("\n%s", diff)
				}
			}

			if milestones {
				approved, err := a.Advisor.ApprovedAnnouncements(ctx, id)
				if err != nil {
					return err
				}
				printMilestones(roadmap.Milestones(approved))
			}
			return nil
		})
	},
}

func printMilestones(ms []roadmap.Milestone) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Milestones")
	t.AppendHeader(table.Row{"Date", "Step", "Announcement", "Title"})
	for _, m := range ms {
		t.AppendRow(table.Row{m.Date, m.Step, m.AnnouncementID, m.Title})
	}
	t.Render()
}

func init() {
	addClientFlag(roadmapCmd)
	addFormatFlag(roadmapCmd)
	roadmapCmd.Flags().Bool("diff", false, "print the change against the stored roadmap")
	roadmapCmd.Flags().Bool("all", false, "print every event instead of the next 12 months")
	roadmapCmd.Flags().Bool("milestones", false, "print preparation milestones for approved announcements")
	rootCmd.AddCommand(roadmapCmd)
}
