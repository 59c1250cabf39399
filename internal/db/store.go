package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/david/grant-advisor/internal/ingest"
	"github.com/david/grant-advisor/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

var _ ingest.Sink = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// AnnouncementFilter narrows ListAnnouncements. Zero values mean no filter.
type AnnouncementFilter struct {
	Query  string
	Source string
	Region string
	Status string // "open", "upcoming", "closed", "unknown" or "all" (default)
	Limit  int
	Offset int
}

type AnnouncementPage struct {
	Announcements []models.Announcement `json:"announcements"`
	Total         int                   `json:"total"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

const announcementCols = `id, title, agency, source_channel, region, stage, max_years_operating,
	open_date, due_date, info_session_date, amount, allowed_uses, keywords, budget_band,
	url, summary, status, updated_at`

func scanAnnouncement(scan func(dest ...interface{}) error) (models.Announcement, error) {
	var a models.Announcement
	var stage, status string
	var maxYears *int32
	var openDate, dueDate, infoDate *time.Time
	var band *string

	err := scan(
		&a.ID, &a.Title, &a.Agency, &a.SourceChannel, &a.Region, &stage, &maxYears,
		&openDate, &dueDate, &infoDate, &a.Amount, &a.AllowedUses, &a.Keywords, &band,
		&a.URL, &a.Summary, &status, &a.UpdatedAt,
	)
	if err != nil {
		return a, err
	}

	a.Stage = models.Stage(stage)
	a.Status = models.Status(status)
	if maxYears != nil {
		n := int(*maxYears)
		a.MaxYearsOperating = &n
	}
	a.OpenDate = models.DatePtr(openDate)
	a.DueDate = models.DatePtr(dueDate)
	a.InfoSessionDate = models.DatePtr(infoDate)
	if band != nil {
		b := models.BudgetBand(*band)
		a.BudgetBand = &b
	}
	return a, nil
}

func nullableBand(b *models.BudgetBand) *string {
	if b == nil {
		return nil
	}
	s := string(*b)
	return &s
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// UpsertAnnouncement inserts or refreshes one catalog entry. A nil embedding
// keeps whatever vector is already stored.
func (s *Store) UpsertAnnouncement(ctx context.Context, a models.Announcement, embedding []float32) error {
	var vec *pgvector.Vector
	if len(embedding) > 0 {
		v := pgvector.NewVector(embedding)
		vec = &v
	}
	status := a.Status
	if status == "" {
		status = models.StatusUnknown
	}
	updatedAt := a.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO announcements (
			id, title, agency, source_channel, region, stage, max_years_operating,
			open_date, due_date, info_session_date, amount, allowed_uses, keywords, budget_band,
			url, summary, status, embedding, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			agency = EXCLUDED.agency,
			source_channel = EXCLUDED.source_channel,
			region = EXCLUDED.region,
			stage = EXCLUDED.stage,
			max_years_operating = EXCLUDED.max_years_operating,
			open_date = EXCLUDED.open_date,
			due_date = EXCLUDED.due_date,
			info_session_date = COALESCE(EXCLUDED.info_session_date, announcements.info_session_date),
			amount = EXCLUDED.amount,
			allowed_uses = EXCLUDED.allowed_uses,
			keywords = EXCLUDED.keywords,
			budget_band = EXCLUDED.budget_band,
			url = EXCLUDED.url,
			summary = EXCLUDED.summary,
			status = EXCLUDED.status,
			embedding = COALESCE(EXCLUDED.embedding, announcements.embedding),
			updated_at = EXCLUDED.updated_at
	`,
		a.ID, a.Title, a.Agency, a.SourceChannel, a.Region, string(a.Stage), a.MaxYearsOperating,
		models.TimePtr(a.OpenDate), models.TimePtr(a.DueDate), models.TimePtr(a.InfoSessionDate), a.Amount,
		emptyIfNil(a.AllowedUses), emptyIfNil(a.Keywords), nullableBand(a.BudgetBand),
		a.URL, a.Summary, string(status), vec, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert announcement %s: %w", a.ID, err)
	}
	return nil
}

// buildAnnouncementWhere renders the WHERE clause and positional args for a
// filter. Placeholders start at $1.
func buildAnnouncementWhere(f AnnouncementFilter) (string, []interface{}) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if q := strings.TrimSpace(f.Query); q != "" {
		where += fmt.Sprintf(" AND (title ILIKE '%%' || $%d || '%%' OR agency ILIKE '%%' || $%d || '%%' OR $%d = ANY(keywords))", argIdx, argIdx, argIdx)
		args = append(args, q)
		argIdx++
	}
	if f.Source != "" {
		where += fmt.Sprintf(" AND source_channel = $%d", argIdx)
		args = append(args, f.Source)
		argIdx++
	}
	if f.Region != "" {
		where += fmt.Sprintf(" AND (region = '%s' OR region LIKE '%%' || $%d || '%%')", models.Nationwide, argIdx)
		args = append(args, f.Region)
		argIdx++
	}
	if f.Status != "" && f.Status != "all" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, f.Status)
	}
	return where, args
}

func (s *Store) ListAnnouncements(ctx context.Context, f AnnouncementFilter) (*AnnouncementPage, error) {
	where, args := buildAnnouncementWhere(f)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM announcements "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	n := len(args)
	query := fmt.Sprintf("SELECT %s FROM announcements %s ORDER BY due_date ASC NULLS LAST, id ASC LIMIT $%d OFFSET $%d",
		announcementCols, where, n+1, n+2)
	args = append(args, limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	anns := []models.Announcement{}
	for rows.Next() {
		a, err := scanAnnouncement(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		anns = append(anns, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return &AnnouncementPage{Announcements: anns, Total: total, Limit: limit, Offset: f.Offset}, nil
}

// Catalog returns every announcement that is not closed, the input the
// scoring engine runs over.
func (s *Store) Catalog(ctx context.Context) ([]models.Announcement, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM announcements WHERE status <> 'closed' ORDER BY id", announcementCols))
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}
	defer rows.Close()

	var out []models.Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAnnouncement(ctx context.Context, id string) (*models.Announcement, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM announcements WHERE id = $1", announcementCols), id)
	a, err := scanAnnouncement(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get announcement %s: %w", id, err)
	}
	return &a, nil
}

// NearestAnnouncements returns up to k open or upcoming announcements ordered
// by cosine distance to vec.
func (s *Store) NearestAnnouncements(ctx context.Context, vec []float32, k int) ([]models.Announcement, error) {
	if k <= 0 {
		k = 50
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM announcements
		WHERE embedding IS NOT NULL AND status <> 'closed'
		ORDER BY embedding <=> $1
		LIMIT $2
	`, announcementCols), pgvector.NewVector(vec), k)
	if err != nil {
		return nil, fmt.Errorf("nearest query failed: %w", err)
	}
	defer rows.Close()

	var out []models.Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Stats counts the catalog by status and by source.
func (s *Store) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM announcements").Scan(&total); err != nil {
		return nil, fmt.Errorf("count announcements: %w", err)
	}
	stats["total"] = total

	byStatus, err := s.countBy(ctx, "status")
	if err != nil {
		return nil, err
	}
	stats["status_counts"] = byStatus

	bySource, err := s.countBy(ctx, "source_channel")
	if err != nil {
		return nil, err
	}
	stats["source_counts"] = bySource

	var clients int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM clients").Scan(&clients); err != nil {
		return nil, fmt.Errorf("count clients: %w", err)
	}
	stats["clients"] = clients
	return stats, nil
}

// countBy groups announcements by a fixed column name; col is never user input.
func (s *Store) countBy(ctx context.Context, col string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT %s, COUNT(*) FROM announcements GROUP BY %s", col, col))
	if err != nil {
		return nil, fmt.Errorf("count by %s: %w", col, err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}
