// Package advisor ties the catalog, client store, scoring engine and roadmap
// projector together for one client at a time. The HTTP API and the CLI both
// go through it.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/david/grant-advisor/internal/db"
	"github.com/david/grant-advisor/internal/matching"
	"github.com/david/grant-advisor/internal/models"
	"github.com/david/grant-advisor/internal/roadmap"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RoadmapMonths is the horizon shown to operators.
const RoadmapMonths = 12

// Store is the persistence the advisor needs. *db.Store satisfies it.
type Store interface {
	Catalog(ctx context.Context) ([]models.Announcement, error)
	GetAnnouncement(ctx context.Context, id string) (*models.Announcement, error)
	GetClient(ctx context.Context, id uuid.UUID) (*models.ClientProfile, error)
	SetReview(ctx context.Context, r models.Review) (*models.Review, error)
	ListReviews(ctx context.Context, clientID uuid.UUID) ([]models.Review, error)
	ReplaceRoadmap(ctx context.Context, clientID uuid.UUID, events []models.RoadmapEvent) error
	GetRoadmapEvents(ctx context.Context, clientID uuid.UUID) ([]models.RoadmapEvent, error)
	SaveRecommendations(ctx context.Context, clientID uuid.UUID, recs []models.Recommendation) error
}

var _ Store = (*db.Store)(nil)

// Recommender is the language-model recommender.
type Recommender interface {
	Recommend(ctx context.Context, profile models.ClientProfile, catalog []models.Announcement) ([]models.Recommendation, error)
}

var ErrNoRecommender = errors.New("recommender is not configured")

type Service struct {
	Store       Store
	Engine      *matching.Engine
	Recommender Recommender // optional
	Log         *zap.Logger
	Clock       func() time.Time
}

func New(store Store, engine *matching.Engine, rec Recommender, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if engine == nil {
		engine = matching.NewEngine(matching.DefaultConfig())
	}
	return &Service{Store: store, Engine: engine, Recommender: rec, Log: log, Clock: time.Now}
}

func (s *Service) Today() models.Date {
	if s.Clock == nil {
		return models.DateOf(time.Now())
	}
	return models.DateOf(s.Clock())
}

// Match is a scored announcement with the operator's decision on it.
type Match struct {
	models.MatchResult
	Review models.Review `json:"review"`
}

type ClientMatches struct {
	Client  models.ClientProfile `json:"client"`
	Matches []Match              `json:"matches"`
	Reviews []models.Review      `json:"-"`
}

// Results returns the bare match results in rank order.
func (m *ClientMatches) Results() []models.MatchResult {
	out := make([]models.MatchResult, 0, len(m.Matches))
	for _, match := range m.Matches {
		out = append(out, match.MatchResult)
	}
	return out
}

// Matches scores the current catalog for one client and attaches review
// state. Pairs without a stored review are pending.
func (s *Service) Matches(ctx context.Context, clientID uuid.UUID, top int, includeInfeasible bool) (*ClientMatches, error) {
	client, err := s.Store.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.Store.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	reviews, err := s.Store.ListReviews(ctx, clientID)
	if err != nil {
		return nil, err
	}
	byAnn := make(map[string]models.Review, len(reviews))
	for _, r := range reviews {
		byAnn[r.AnnouncementID] = r
	}

	results := s.Engine.Rank(*client, catalog, top, includeInfeasible)
	matches := make([]Match, 0, len(results))
	for _, res := range results {
		review, ok := byAnn[res.Announcement.ID]
		if !ok {
			review = models.Review{ClientID: clientID, AnnouncementID: res.Announcement.ID, Status: models.ReviewPending}
		}
		matches = append(matches, Match{MatchResult: res, Review: review})
	}
	s.Log.Debug("scored catalog",
		zap.String("client", clientID.String()),
		zap.Int("catalog", len(catalog)),
		zap.Int("returned", len(matches)),
	)
	return &ClientMatches{Client: *client, Matches: matches, Reviews: reviews}, nil
}

// Review records a decision. The announcement must exist.
func (s *Service) Review(ctx context.Context, clientID uuid.UUID, announcementID string, status models.ReviewStatus, comment string) (*models.Review, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid review status %q", status)
	}
	if _, err := s.Store.GetAnnouncement(ctx, announcementID); err != nil {
		return nil, err
	}
	return s.Store.SetReview(ctx, models.Review{
		ClientID:       clientID,
		AnnouncementID: announcementID,
		Status:         status,
		Comment:        comment,
	})
}

// ApprovedAnnouncements loads every announcement the client approved, in
// review order. Announcements removed from the catalog are skipped.
func (s *Service) ApprovedAnnouncements(ctx context.Context, clientID uuid.UUID) ([]models.Announcement, error) {
	reviews, err := s.Store.ListReviews(ctx, clientID)
	if err != nil {
		return nil, err
	}
	var approved []models.Announcement
	for _, r := range reviews {
		if r.Status != models.ReviewApproved {
			continue
		}
		ann, err := s.Store.GetAnnouncement(ctx, r.AnnouncementID)
		if errors.Is(err, db.ErrNotFound) {
			s.Log.Warn("approved announcement missing", zap.String("announcement", r.AnnouncementID))
			continue
		}
		if err != nil {
			return nil, err
		}
		approved = append(approved, *ann)
	}
	return roadmap.SelectApproved(approved, reviews), nil
}

// RegenerateRoadmap projects the approved announcements and replaces the
// stored roadmap. It returns the previous and the new roadmap.
func (s *Service) RegenerateRoadmap(ctx context.Context, clientID uuid.UUID) (prev, next roadmap.Roadmap, err error) {
	if _, err := s.Store.GetClient(ctx, clientID); err != nil {
		return prev, next, err
	}
	stored, err := s.Store.GetRoadmapEvents(ctx, clientID)
	if err != nil {
		return prev, next, err
	}
	prev = roadmap.FromEvents(stored)

	approved, err := s.ApprovedAnnouncements(ctx, clientID)
	if err != nil {
		return prev, next, err
	}
	next = roadmap.Project(approved)
	if err := s.Store.ReplaceRoadmap(ctx, clientID, next.Events()); err != nil {
		return prev, next, err
	}
	s.Log.Info("roadmap regenerated",
		zap.String("client", clientID.String()),
		zap.Int("approved", len(approved)),
		zap.Int("events", next.Len()),
	)
	return prev, next, nil
}

// Roadmap loads the stored roadmap. With all unset it is cut to the
// RoadmapMonths horizon starting this month.
func (s *Service) Roadmap(ctx context.Context, clientID uuid.UUID, all bool) (roadmap.Roadmap, error) {
	if _, err := s.Store.GetClient(ctx, clientID); err != nil {
		return roadmap.Roadmap{}, err
	}
	events, err := s.Store.GetRoadmapEvents(ctx, clientID)
	if err != nil {
		return roadmap.Roadmap{}, err
	}
	r := roadmap.FromEvents(events)
	if all {
		return r, nil
	}
	return roadmap.Window(r, s.Today(), RoadmapMonths), nil
}

// Recommend runs the language-model recommender and replaces the stored list.
func (s *Service) Recommend(ctx context.Context, clientID uuid.UUID) ([]models.Recommendation, error) {
	if s.Recommender == nil {
		return nil, ErrNoRecommender
	}
	client, err := s.Store.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.Store.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.Recommender.Recommend(ctx, *client, catalog)
	if err != nil {
		return nil, err
	}
	if err := s.Store.SaveRecommendations(ctx, clientID, recs); err != nil {
		return nil, err
	}
	s.Log.Info("recommendations stored", zap.String("client", clientID.String()), zap.Int("count", len(recs)))
	return recs, nil
}
