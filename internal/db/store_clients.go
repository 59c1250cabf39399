package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/david/grant-advisor/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const clientCols = `id, name, region, business_type, years_operating, stage, industry,
	industry_keywords, preferred_uses, preferred_budget_band, pinned, created_at, updated_at`

func scanClient(scan func(dest ...interface{}) error) (models.ClientProfile, error) {
	var c models.ClientProfile
	var businessType, stage, band string
	err := scan(
		&c.ID, &c.Name, &c.Region, &businessType, &c.YearsOperating, &stage, &c.Industry,
		&c.IndustryKeywords, &c.PreferredUses, &band, &c.Pinned, &c.CreatedAt, &c.UpdatedAt,
	)
	c.BusinessType = models.BusinessType(businessType)
	c.Stage = models.Stage(stage)
	c.PreferredBudgetBand = models.BudgetBand(band)
	return c, err
}

// UpsertClient creates the client when ID is nil or unknown and replaces the
// profile otherwise. The stored row is returned.
func (s *Store) UpsertClient(ctx context.Context, c models.ClientProfile) (*models.ClientProfile, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO clients (
			id, name, region, business_type, years_operating, stage, industry,
			industry_keywords, preferred_uses, preferred_budget_band, pinned
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			region = EXCLUDED.region,
			business_type = EXCLUDED.business_type,
			years_operating = EXCLUDED.years_operating,
			stage = EXCLUDED.stage,
			industry = EXCLUDED.industry,
			industry_keywords = EXCLUDED.industry_keywords,
			preferred_uses = EXCLUDED.preferred_uses,
			preferred_budget_band = EXCLUDED.preferred_budget_band,
			pinned = EXCLUDED.pinned,
			updated_at = NOW()
		RETURNING %s
	`, clientCols),
		c.ID, c.Name, c.Region, string(c.BusinessType), c.YearsOperating, string(c.Stage), c.Industry,
		emptyIfNil(c.IndustryKeywords), emptyIfNil(c.PreferredUses), string(c.PreferredBudgetBand), c.Pinned,
	)
	stored, err := scanClient(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("upsert client: %w", err)
	}
	return &stored, nil
}

func (s *Store) GetClient(ctx context.Context, id uuid.UUID) (*models.ClientProfile, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM clients WHERE id = $1", clientCols), id)
	c, err := scanClient(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

// ListClients returns pinned clients first, then by name.
func (s *Store) ListClients(ctx context.Context) ([]models.ClientProfile, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT %s FROM clients ORDER BY pinned DESC, name ASC, id ASC", clientCols))
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []models.ClientProfile{}
	for rows.Next() {
		c, err := scanClient(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// DeleteClient removes the client and, by cascade, its reviews, roadmap and
// recommendations.
func (s *Store) DeleteClient(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM clients WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// lockClient takes a row lock on the client so writes to one client's
// decisions and roadmap are serialized.
func lockClient(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var locked uuid.UUID
	err := tx.QueryRow(ctx, "SELECT id FROM clients WHERE id = $1 FOR UPDATE", id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// SetReview records the operator decision for one (client, announcement)
// pair. Later writes replace earlier ones.
func (s *Store) SetReview(ctx context.Context, r models.Review) (*models.Review, error) {
	if !r.Status.Valid() {
		return nil, fmt.Errorf("invalid review status %q", r.Status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin review tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockClient(ctx, tx, r.ClientID); err != nil {
		return nil, err
	}

	var stored models.Review
	var status string
	err = tx.QueryRow(ctx, `
		INSERT INTO reviews (client_id, announcement_id, status, comment, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (client_id, announcement_id) DO UPDATE SET
			status = EXCLUDED.status,
			comment = EXCLUDED.comment,
			updated_at = NOW()
		RETURNING client_id, announcement_id, status, comment, updated_at
	`, r.ClientID, r.AnnouncementID, string(r.Status), r.Comment).Scan(
		&stored.ClientID, &stored.AnnouncementID, &status, &stored.Comment, &stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert review: %w", err)
	}
	stored.Status = models.ReviewStatus(status)

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit review: %w", err)
	}
	return &stored, nil
}

func (s *Store) ListReviews(ctx context.Context, clientID uuid.UUID) ([]models.Review, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT client_id, announcement_id, status, comment, updated_at
		FROM reviews WHERE client_id = $1
		ORDER BY announcement_id
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var r models.Review
		var status string
		if err := rows.Scan(&r.ClientID, &r.AnnouncementID, &status, &r.Comment, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		r.Status = models.ReviewStatus(status)
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// ReplaceRoadmap swaps the stored roadmap for a client in one transaction.
// Regeneration always replaces; it never merges.
func (s *Store) ReplaceRoadmap(ctx context.Context, clientID uuid.UUID, events []models.RoadmapEvent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin roadmap tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockClient(ctx, tx, clientID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM roadmap_events WHERE client_id = $1", clientID); err != nil {
		return fmt.Errorf("clear roadmap: %w", err)
	}

	now := time.Now().UTC()
	rows := make([][]interface{}, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []interface{}{
			clientID, string(ev.Kind), ev.AnnouncementID, ev.Title, ev.Date.Time(), ev.MonthKey, ev.QuarterKey, now,
		})
	}
	if len(rows) > 0 {
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"roadmap_events"},
			[]string{"client_id", "kind", "announcement_id", "title", "event_date", "month_key", "quarter_key", "generated_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("insert roadmap events: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GetRoadmapEvents(ctx context.Context, clientID uuid.UUID) ([]models.RoadmapEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT kind, announcement_id, title, event_date, month_key, quarter_key
		FROM roadmap_events WHERE client_id = $1
		ORDER BY event_date, announcement_id
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("get roadmap: %w", err)
	}
	defer rows.Close()

	var events []models.RoadmapEvent
	for rows.Next() {
		var ev models.RoadmapEvent
		var kind string
		var date time.Time
		if err := rows.Scan(&kind, &ev.AnnouncementID, &ev.Title, &date, &ev.MonthKey, &ev.QuarterKey); err != nil {
			return nil, fmt.Errorf("scan roadmap event: %w", err)
		}
		ev.Kind = models.EventKind(kind)
		ev.Date = models.DateOf(date)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// SaveRecommendations replaces the stored language-model recommendations for
// a client.
func (s *Store) SaveRecommendations(ctx context.Context, clientID uuid.UUID, recs []models.Recommendation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin recommendations tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockClient(ctx, tx, clientID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM recommendations WHERE client_id = $1", clientID); err != nil {
		return fmt.Errorf("clear recommendations: %w", err)
	}

	batch := &pgx.Batch{}
	for i, r := range recs {
		rank := r.Rank
		if rank == 0 {
			rank = i + 1
		}
		generated := r.GeneratedAt
		if generated.IsZero() {
			generated = time.Now().UTC()
		}
		batch.Queue(`
			INSERT INTO recommendations (
				client_id, rank, title, score, reason, open_date, due_date, remaining,
				amount_text, uses, status, active, source, generated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		`, clientID, rank, r.Title, r.Score, r.Reason, r.OpenDate, r.DueDate, r.Remaining,
			r.AmountText, r.Uses, r.Status, r.Active, r.Source, generated)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert recommendations: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ListRecommendations(ctx context.Context, clientID uuid.UUID) ([]models.Recommendation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT client_id, rank, title, score, reason, open_date, due_date, remaining,
		       amount_text, uses, status, active, source, generated_at
		FROM recommendations WHERE client_id = $1
		ORDER BY rank
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	recs := []models.Recommendation{}
	for rows.Next() {
		var r models.Recommendation
		if err := rows.Scan(&r.ClientID, &r.Rank, &r.Title, &r.Score, &r.Reason, &r.OpenDate, &r.DueDate, &r.Remaining,
			&r.AmountText, &r.Uses, &r.Status, &r.Active, &r.Source, &r.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
