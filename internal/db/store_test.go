package db

import (
	"strings"
	"testing"
)

func TestBuildAnnouncementWhere(t *testing.T) {
	tests := []struct {
		name     string
		filter   AnnouncementFilter
		contains []string
		args     int
	}{
		{name: "empty", filter: AnnouncementFilter{}, contains: []string{"WHERE 1=1"}, args: 0},
		{name: "all status is no filter", filter: AnnouncementFilter{Status: "all"}, args: 0},
		{
			name:     "query and status",
			filter:   AnnouncementFilter{Query: " AI ", Status: "open"},
			contains: []string{"title ILIKE '%' || $1 || '%'", "$1 = ANY(keywords)", "status = $2"},
			args:     2,
		},
		{
			name:     "region keeps nationwide",
			filter:   AnnouncementFilter{Source: "kstartup", Region: "서울"},
			contains: []string{"source_channel = $1", "region = 'nationwide'", "region LIKE '%' || $2 || '%'"},
			args:     2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildAnnouncementWhere(tt.filter)
			for _, token := range tt.contains {
				if !strings.Contains(where, token) {
					t.Fatalf("where clause missing %q: %s", token, where)
				}
			}
			if len(args) != tt.args {
				t.Fatalf("expected %d args, got %d (%v)", tt.args, len(args), args)
			}
			if strings.Count(where, "$") < len(args) {
				t.Fatalf("placeholders do not cover args: %s", where)
			}
		})
	}
	if where, args := buildAnnouncementWhere(AnnouncementFilter{Query: "AI"}); args[0] != "AI" || strings.Contains(where, "status") {
		t.Fatalf("unexpected query filter: %s %v", where, args)
	}
}

func TestMigrationFilesAreOrdered(t *testing.T) {
	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	if len(files) == 0 || files[0] != "001_init.sql" {
		t.Fatalf("unexpected migrations: %v", files)
	}
	content, err := migrationsFS.ReadFile("migrations/" + files[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, table := range []string{"announcements", "clients", "reviews", "roadmap_events", "recommendations", "ingest_runs", "operators"} {
		if !strings.Contains(string(content), "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("migration does not create %s", table)
		}
	}
}
