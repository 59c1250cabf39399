package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/david/grant-advisor/internal/db"
	"github.com/david/grant-advisor/internal/matching"
	"github.com/david/grant-advisor/internal/models"
	"github.com/google/uuid"
)

type memStore struct {
	catalog  []models.Announcement
	clients  map[uuid.UUID]models.ClientProfile
	reviews  map[uuid.UUID][]models.Review
	roadmaps map[uuid.UUID][]models.RoadmapEvent
	recs     map[uuid.UUID][]models.Recommendation
}

func newMemStore() *memStore {
	return &memStore{
		clients:  map[uuid.UUID]models.ClientProfile{},
		reviews:  map[uuid.UUID][]models.Review{},
		roadmaps: map[uuid.UUID][]models.RoadmapEvent{},
		recs:     map[uuid.UUID][]models.Recommendation{},
	}
}

func (m *memStore) Catalog(ctx context.Context) ([]models.Announcement, error) {
	return append([]models.Announcement(nil), m.catalog...), nil
}

func (m *memStore) GetAnnouncement(ctx context.Context, id string) (*models.Announcement, error) {
	for _, a := range m.catalog {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) GetClient(ctx context.Context, id uuid.UUID) (*models.ClientProfile, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &c, nil
}

func (m *memStore) SetReview(ctx context.Context, r models.Review) (*models.Review, error) {
	if _, ok := m.clients[r.ClientID]; !ok {
		return nil, db.ErrNotFound
	}
	list := m.reviews[r.ClientID]
	for i := range list {
		if list[i].AnnouncementID == r.AnnouncementID {
			list[i] = r
			return &r, nil
		}
	}
	m.reviews[r.ClientID] = append(list, r)
	return &r, nil
}

func (m *memStore) ListReviews(ctx context.Context, clientID uuid.UUID) ([]models.Review, error) {
	return m.reviews[clientID], nil
}

func (m *memStore) ReplaceRoadmap(ctx context.Context, clientID uuid.UUID, events []models.RoadmapEvent) error {
	m.roadmaps[clientID] = events
	return nil
}

func (m *memStore) GetRoadmapEvents(ctx context.Context, clientID uuid.UUID) ([]models.RoadmapEvent, error) {
	return m.roadmaps[clientID], nil
}

func (m *memStore) SaveRecommendations(ctx context.Context, clientID uuid.UUID, recs []models.Recommendation) error {
	m.recs[clientID] = recs
	return nil
}

type stubRecommender struct{ got []models.Announcement }

func (s *stubRecommender) Recommend(ctx context.Context, profile models.ClientProfile, catalog []models.Announcement) ([]models.Recommendation, error) {
	s.got = catalog
	return []models.Recommendation{{ClientID: profile.ID, Rank: 1, Title: catalog[0].Title, Score: 90, Source: models.SourceLLM}}, nil
}

func day(y int, m time.Month, d int) *models.Date {
	v := models.NewDate(y, m, d)
	return &v
}

func fixture() (*memStore, uuid.UUID) {
	store := newMemStore()
	id := uuid.New()
	store.clients[id] = models.ClientProfile{
		ID:               id,
		Name:             "알파",
		Region:           "서울",
		BusinessType:     models.BusinessCorporation,
		YearsOperating:   2,
		Stage:            models.StageEarly,
		IndustryKeywords: []string{"AI"},
	}
	store.catalog = []models.Announcement{
		{ID: "a1", Title: "AI 바우처", Region: models.Nationwide, Stage: models.StageEarly, Keywords: []string{"AI"}, DueDate: day(2025, 10, 15), InfoSessionDate: day(2025, 9, 20)},
		{ID: "a2", Title: "부산 전용", Region: "부산", Stage: models.StageEarly, DueDate: day(2025, 11, 1)},
		{ID: "a3", Title: "내년 사업", Region: models.Nationwide, DueDate: day(2026, 12, 1)},
	}
	return store, id
}

func testService(store Store) *Service {
	s := New(store, matching.NewEngine(matching.DefaultConfig()), nil, nil)
	s.Clock = func() time.Time { return time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestMatchesAttachReviews(t *testing.T) {
	store, id := fixture()
	svc := testService(store)
	if _, err := svc.Review(context.Background(), id, "a1", models.ReviewApproved, "좋음"); err != nil {
		t.Fatalf("Review: %v", err)
	}

	got, err := svc.Matches(context.Background(), id, 10, false)
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	for _, m := range got.Matches {
		if m.Announcement.ID == "a2" {
			t.Fatal("region mismatch must be hidden without includeInfeasible")
		}
	}
	if got.Matches[0].Announcement.ID != "a1" || got.Matches[0].Review.Status != models.ReviewApproved {
		t.Fatalf("unexpected first match: %+v", got.Matches[0])
	}
	for _, m := range got.Matches[1:] {
		if m.Review.Status != models.ReviewPending {
			t.Fatalf("unreviewed match should be pending: %+v", m.Review)
		}
	}

	all, err := svc.Matches(context.Background(), id, 0, true)
	if err != nil {
		t.Fatalf("Matches all: %v", err)
	}
	if len(all.Results()) != len(store.catalog) {
		t.Fatalf("expected every announcement, got %d", len(all.Results()))
	}
}

func TestMatchesUnknownClient(t *testing.T) {
	store, _ := fixture()
	if _, err := testService(store).Matches(context.Background(), uuid.New(), 10, false); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReviewValidation(t *testing.T) {
	store, id := fixture()
	svc := testService(store)
	if _, err := svc.Review(context.Background(), id, "a1", "maybe", ""); err == nil {
		t.Fatal("expected invalid status error")
	}
	if _, err := svc.Review(context.Background(), id, "missing", models.ReviewApproved, ""); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown announcement, got %v", err)
	}
}

func TestRegenerateRoadmapReplaces(t *testing.T) {
	store, id := fixture()
	svc := testService(store)
	ctx := context.Background()

	svc.Review(ctx, id, "a1", models.ReviewApproved, "")
	svc.Review(ctx, id, "a2", models.ReviewRejected, "")

	prev, next, err := svc.RegenerateRoadmap(ctx, id)
	if err != nil {
		t.Fatalf("RegenerateRoadmap: %v", err)
	}
	if prev.Len() != 0 || next.Len() != 2 {
		t.Fatalf("prev=%d next=%d events", prev.Len(), next.Len())
	}
	if len(store.roadmaps[id]) != 2 {
		t.Fatalf("stored %d events", len(store.roadmaps[id]))
	}

	// Approving a third announcement and regenerating replaces, not appends.
	svc.Review(ctx, id, "a3", models.ReviewApproved, "")
	prev, next, err = svc.RegenerateRoadmap(ctx, id)
	if err != nil {
		t.Fatalf("RegenerateRoadmap: %v", err)
	}
	if prev.Len() != 2 || next.Len() != 3 || len(store.roadmaps[id]) != 3 {
		t.Fatalf("prev=%d next=%d stored=%d", prev.Len(), next.Len(), len(store.roadmaps[id]))
	}

	windowed, err := svc.Roadmap(ctx, id, false)
	if err != nil {
		t.Fatalf("Roadmap: %v", err)
	}
	if windowed.Len() != 2 {
		t.Fatalf("12-month window should drop the December 2026 event, got %d events", windowed.Len())
	}
	full, _ := svc.Roadmap(ctx, id, true)
	if full.Len() != 3 {
		t.Fatalf("full roadmap has %d events", full.Len())
	}
}

func TestApprovedAnnouncementsSkipsRemoved(t *testing.T) {
	store, id := fixture()
	svc := testService(store)
	svc.Review(context.Background(), id, "a1", models.ReviewApproved, "")
	store.reviews[id] = append(store.reviews[id], models.Review{ClientID: id, AnnouncementID: "gone", Status: models.ReviewApproved})

	got, err := svc.ApprovedAnnouncements(context.Background(), id)
	if err != nil {
		t.Fatalf("ApprovedAnnouncements: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a1" {
		t.Fatalf("unexpected approved list: %v", got)
	}
}

func TestRecommendStores(t *testing.T) {
	store, id := fixture()
	svc := testService(store)
	if _, err := svc.Recommend(context.Background(), id); !errors.Is(err, ErrNoRecommender) {
		t.Fatalf("expected ErrNoRecommender, got %v", err)
	}

	rec := &stubRecommender{}
	svc.Recommender = rec
	recs, err := svc.Recommend(context.Background(), id)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 1 || len(store.recs[id]) != 1 || len(rec.got) != len(store.catalog) {
		t.Fatalf("recommendations not stored: %v", store.recs[id])
	}
}
