// Package export flattens match lists and roadmaps into rows with stable
// column names and renders them for spreadsheets or terminals.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/david/grant-advisor/internal/ingest"
	"github.com/david/grant-advisor/internal/models"
	"github.com/david/grant-advisor/internal/roadmap"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
)

type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatTable    Format = "table"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatMarkdown, FormatTable:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// Column sets. Order and names are part of the export contract.
var (
	MatchHeader = []string{
		"client_id", "announcement_id", "title", "agency", "source", "region",
		"due_date", "days_remaining", "amount", "amount_short", "score",
		"label", "hard_fail", "rationale", "review_status", "comment",
	}
	RoadmapHeader = []string{
		"client_id", "quarter", "month", "date", "kind", "announcement_id",
		"title", "days_remaining",
	}
	RecommendationHeader = []string{
		"client_id", "rank", "title", "score", "reason", "open_date",
		"due_date", "remaining", "amount", "uses", "status", "active", "source",
	}
)

// MatchRows emits one row per match. Announcements without a review read as
// pending; absent optional fields become empty cells.
func MatchRows(clientID uuid.UUID, results []models.MatchResult, reviews []models.Review, today models.Date) [][]string {
	byAnn := make(map[string]models.Review, len(reviews))
	for _, r := range reviews {
		byAnn[r.AnnouncementID] = r
	}

	rows := make([][]string, 0, len(results))
	for _, res := range results {
		ann := res.Announcement
		var due, days, amount, short string
		if ann.DueDate != nil {
			due = ann.DueDate.String()
			days = strconv.Itoa(roadmap.DaysRemaining(*ann.DueDate, today))
		}
		if ann.Amount != nil {
			amount = strconv.FormatInt(*ann.Amount, 10)
			short = ingest.FormatShortKRW(*ann.Amount)
		}
		status, comment := string(models.ReviewPending), ""
		if r, ok := byAnn[ann.ID]; ok {
			status, comment = string(r.Status), r.Comment
		}
		rows = append(rows, []string{
			clientID.String(),
			ann.ID,
			ann.Title,
			ann.Agency,
			ann.SourceChannel,
			ann.Region,
			due,
			days,
			amount,
			short,
			strconv.Itoa(res.Score),
			string(res.Label),
			strconv.FormatBool(res.HardFail),
			strings.Join(res.Rationale, "; "),
			status,
			comment,
		})
	}
	return rows
}

// RoadmapRows emits one row per event in roadmap order.
func RoadmapRows(clientID uuid.UUID, r roadmap.Roadmap, today models.Date) [][]string {
	countdowns := roadmap.Countdowns(r, today)
	rows := make([][]string, 0, len(countdowns))
	for _, c := range countdowns {
		rows = append(rows, []string{
			clientID.String(),
			c.QuarterKey,
			c.MonthKey,
			c.Date.String(),
			string(c.Kind),
			c.AnnouncementID,
			c.Title,
			strconv.Itoa(c.DaysRemaining),
		})
	}
	return rows
}

func RecommendationRows(recs []models.Recommendation) [][]string {
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, []string{
			rec.ClientID.String(),
			strconv.Itoa(rec.Rank),
			rec.Title,
			strconv.FormatFloat(rec.Score, 'f', -1, 64),
			rec.Reason,
			rec.OpenDate,
			rec.DueDate,
			rec.Remaining,
			rec.AmountText,
			rec.Uses,
			rec.Status,
			strconv.FormatBool(rec.Active),
			rec.Source,
		})
	}
	return rows
}

// Write renders header and rows to w in the given format. CSV output starts
// with a UTF-8 byte order mark so spreadsheet tools detect Korean text.
func Write(w io.Writer, format Format, header []string, rows [][]string) error {
	for i, row := range rows {
		if len(row) != len(header) {
			return fmt.Errorf("row %d has %d cells, header has %d", i, len(row), len(header))
		}
	}
	if format == FormatCSV {
		return writeCSV(w, header, rows)
	}

	t := table.NewWriter()
	t.AppendHeader(toRow(header))
	for _, row := range rows {
		t.AppendRow(toRow(row))
	}

	var out string
	switch format {
	case FormatMarkdown:
		out = t.RenderMarkdown()
	case FormatTable, "":
		t.SetStyle(table.StyleLight)
		out = t.Render()
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
	if _, err := io.WriteString(w, out+"\n"); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
