package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/david/grant-advisor/internal/models"
	"github.com/david/grant-advisor/internal/roadmap"
	"github.com/google/uuid"
)

func day(y int, m time.Month, d int) *models.Date {
	v := models.NewDate(y, m, d)
	return &v
}

func sampleResults() []models.MatchResult {
	amount := int64(120_000_000)
	return []models.MatchResult{
		{
			Announcement: models.Announcement{
				ID: "a1", Title: "초기창업패키지, 2차", Agency: "창업진흥원", SourceChannel: "kstartup",
				Region: "nationwide", DueDate: day(2025, 9, 30), Amount: &amount,
			},
			Score:     82,
			Label:     models.LabelFeasible,
			Rationale: []string{"region ok", `keyword "AI" matched`},
		},
		{
			Announcement: models.Announcement{ID: "a2", Title: "지역 특화", Region: "부산"},
			Score:        0,
			Label:        models.LabelInfeasible,
			HardFail:     true,
		},
	}
}

func TestMatchRows(t *testing.T) {
	client := uuid.New()
	reviews := []models.Review{{ClientID: client, AnnouncementID: "a1", Status: models.ReviewApproved, Comment: "1순위"}}
	rows := MatchRows(client, sampleResults(), reviews, models.NewDate(2025, 9, 10))

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	col := func(row []string, name string) string {
		for i, h := range MatchHeader {
			if h == name {
				return row[i]
			}
		}
		t.Fatalf("unknown column %s", name)
		return ""
	}

	first := rows[0]
	checks := map[string]string{
		"client_id":      client.String(),
		"due_date":       "2025-09-30",
		"days_remaining": "20",
		"amount":         "120000000",
		"amount_short":   "1.2억원",
		"score":          "82",
		"label":          "feasible",
		"hard_fail":      "false",
		"review_status":  "approved",
		"comment":        "1순위",
	}
	for name, want := range checks {
		if got := col(first, name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}

	second := rows[1]
	if col(second, "due_date") != "" || col(second, "days_remaining") != "" || col(second, "amount") != "" {
		t.Fatalf("absent fields should be empty: %v", second)
	}
	if col(second, "review_status") != "pending" || col(second, "hard_fail") != "true" {
		t.Fatalf("unexpected defaults: %v", second)
	}
}

func TestRoadmapRows(t *testing.T) {
	client := uuid.New()
	r := roadmap.Project([]models.Announcement{
		{ID: "a1", Title: "초기창업패키지", InfoSessionDate: day(2025, 9, 15), DueDate: day(2025, 10, 2)},
	})
	rows := RoadmapRows(client, r, models.NewDate(2025, 9, 10))
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	want := [][]string{
		{client.String(), "Q3 2025", "2025-09", "2025-09-15", "infoSession", "a1", "초기창업패키지", "5"},
		{client.String(), "Q4 2025", "2025-10", "2025-10-02", "dueDate", "a1", "초기창업패키지", "22"},
	}
	for i := range want {
		if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestWriteCSV(t *testing.T) {
	client := uuid.New()
	rows := MatchRows(client, sampleResults(), nil, models.NewDate(2025, 9, 10))

	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, MatchHeader, rows); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "\ufeff") {
		t.Fatal("csv output should start with a byte order mark")
	}

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\ufeff"))).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d records", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(MatchHeader, ",") {
		t.Fatalf("unexpected header %v", records[0])
	}
	if records[1][2] != "초기창업패키지, 2차" || records[1][13] != `region ok; keyword "AI" matched` {
		t.Fatalf("cells not preserved: %v", records[1])
	}
}

func TestWriteMarkdownAndTable(t *testing.T) {
	client := uuid.New()
	rows := MatchRows(client, sampleResults(), nil, models.NewDate(2025, 9, 10))

	var md bytes.Buffer
	if err := Write(&md, FormatMarkdown, MatchHeader, rows); err != nil {
		t.Fatalf("Write markdown: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(md.String()), "\n")
	if len(lines) != 2+len(rows) {
		t.Fatalf("expected %d markdown lines, got %d:\n%s", 2+len(rows), len(lines), md.String())
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "|") {
			t.Fatalf("not a markdown table line: %q", line)
		}
	}

	var tbl bytes.Buffer
	if err := Write(&tbl, FormatTable, MatchHeader, rows); err != nil {
		t.Fatalf("Write table: %v", err)
	}
	if !strings.Contains(tbl.String(), "지역 특화") {
		t.Fatalf("table output missing a title:\n%s", tbl.String())
	}
}

func TestWriteRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, []string{"a", "b"}, [][]string{{"only one"}}); err == nil {
		t.Fatal("expected row width error")
	}
	if err := Write(&buf, Format("xlsx"), []string{"a"}, nil); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatTable, "CSV": FormatCSV, "md": FormatMarkdown, " table ": FormatTable}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("expected error for pdf")
	}
}
