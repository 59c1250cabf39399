package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/david/grant-advisor/internal/advisor"
	"github.com/david/grant-advisor/internal/app"
	"github.com/david/grant-advisor/internal/matching"
	"github.com/david/grant-advisor/internal/models"
	"github.com/david/grant-advisor/internal/roadmap"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	PromptApprove = "Approve"
	PromptReject  = "Reject"
	PromptSkip    = "Skip"
	PromptQuit    = "Quit"
)

var errQuit = errors.New("quit requested")

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Walk through a client's matches and approve or reject them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, err := clientFlag(cmd)
		if err != nil {
			return err
		}
		top, _ := cmd.Flags().GetInt("top")
		pendingOnly, _ := cmd.Flags().GetBool("pending")

		return withApp(func(ctx context.Context, a *app.App) error {
			got, err := a.Advisor.Matches(ctx, id, top, false)
			if err != nil {
				return err
			}
			a.Log.Info("reviewing matches", zap.String("client", got.Client.Name), zap.Int("count", len(got.Matches)))

			reviewed := 0
			for _, m := range got.Matches {
				if pendingOnly && m.Review.Status != models.ReviewPending {
					continue
				}
				err := reviewOne(ctx, a, m)
				if errors.Is(err, errQuit) {
					break
				}
				if err != nil {
					return err
				}
				reviewed++
			}
			a.Log.Info("review finished", zap.Int("visited", reviewed))
			return nil
		})
	},
}

func matchLabel(m advisor.Match, today models.Date) string {
	due := "no due date"
	if m.Announcement.DueDate != nil {
		due = fmt.Sprintf("due %s (%s)", m.Announcement.DueDate, roadmap.DDay(roadmap.DaysRemaining(*m.Announcement.DueDate, today)))
	}
	return fmt.Sprintf("[%d %s] %s / %s / %s, currently %s",
		m.Score, m.Label, m.Announcement.Title, m.Announcement.Agency, due, m.Review.Status)
}

func reviewOne(ctx context.Context, a *app.App, m advisor.Match) error {
	for _, line := range matching.SummarizeRationale(m.Rationale, len(m.Rationale)) {
		fmt.Printf("  - %s\n", line)
	}
	sel := promptui.Select{
		Label: matchLabel(m, a.Advisor.Today()),
		Items: []string{PromptApprove, PromptReject, PromptSkip, PromptQuit},
	}
	_, action, err := sel.Run()
	if err != nil {
		return err
	}

	var status models.ReviewStatus
	switch action {
	case PromptApprove:
		status = models.ReviewApproved
	case PromptReject:
		status = models.ReviewRejected
	case PromptSkip:
		return nil
	case PromptQuit:
		return errQuit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}

	commentPrompt := promptui.Prompt{
		Label:     "Comment",
		Default:   m.Review.Comment,
		AllowEdit: true,
	}
	comment, err := commentPrompt.Run()
	if err != nil {
		return err
	}

	if _, err := a.Advisor.Review(ctx, m.Review.ClientID, m.Announcement.ID, status, comment); err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	a.Log.Debug("review saved",
		zap.String("client", m.Review.ClientID.String()),
		zap.String("announcement", m.Announcement.ID),
		zap.String("status", string(status)),
	)
	return nil
}

func init() {
	addClientFlag(reviewCmd)
	reviewCmd.Flags().IntP("top", "n", 20, "number of matches to walk through, 0 for all")
	reviewCmd.Flags().Bool("pending", false, "only visit matches without a decision")
	rootCmd.AddCommand(reviewCmd)
}
