package api

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/david/grant-advisor/internal/auth"
	"github.com/david/grant-advisor/internal/db"
	"github.com/david/grant-advisor/internal/ingest"
	"github.com/david/grant-advisor/internal/models"
	"github.com/google/uuid"
)

// memRepo is an in-memory Repository.
type memRepo struct {
	mu       sync.Mutex
	catalog  []models.Announcement
	clients  map[uuid.UUID]models.ClientProfile
	reviews  map[uuid.UUID][]models.Review
	roadmaps map[uuid.UUID][]models.RoadmapEvent
	recs     map[uuid.UUID][]models.Recommendation
	runs     []models.IngestRun
}

func newMemRepo() *memRepo {
	return &memRepo{
		clients:  map[uuid.UUID]models.ClientProfile{},
		reviews:  map[uuid.UUID][]models.Review{},
		roadmaps: map[uuid.UUID][]models.RoadmapEvent{},
		recs:     map[uuid.UUID][]models.Recommendation{},
	}
}

func (m *memRepo) Catalog(ctx context.Context) ([]models.Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Announcement(nil), m.catalog...), nil
}

func (m *memRepo) GetAnnouncement(ctx context.Context, id string) (*models.Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.catalog {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memRepo) ListAnnouncements(ctx context.Context, f db.AnnouncementFilter) (*db.AnnouncementPage, error) {
	all, _ := m.Catalog(ctx)
	var out []models.Announcement
	for _, a := range all {
		if f.Source != "" && a.SourceChannel != f.Source {
			continue
		}
		out = append(out, a)
	}
	total := len(out)
	if f.Offset < len(out) {
		out = out[f.Offset:]
	} else {
		out = nil
	}
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return &db.AnnouncementPage{Announcements: out, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (m *memRepo) Stats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"announcements": len(m.catalog)}, nil
}

func (m *memRepo) UpsertClient(ctx context.Context, c models.ClientProfile) (*models.ClientProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.UpdatedAt = time.Now()
	m.clients[c.ID] = c
	return &c, nil
}

func (m *memRepo) GetClient(ctx context.Context, id uuid.UUID) (*models.ClientProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &c, nil
}

func (m *memRepo) ListClients(ctx context.Context) ([]models.ClientProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.ClientProfile{}
	for _, c := range m.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memRepo) DeleteClient(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.clients, id)
	delete(m.reviews, id)
	delete(m.roadmaps, id)
	delete(m.recs, id)
	return nil
}

func (m *memRepo) SetReview(ctx context.Context, r models.Review) (*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[r.ClientID]; !ok {
		return nil, db.ErrNotFound
	}
	r.UpdatedAt = time.Now()
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

func (m *memRepo) ListReviews(ctx context.Context, clientID uuid.UUID) ([]models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Review(nil), m.reviews[clientID]...), nil
}

func (m *memRepo) ReplaceRoadmap(ctx context.Context, clientID uuid.UUID, events []models.RoadmapEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roadmaps[clientID] = events
	return nil
}

func (m *memRepo) GetRoadmapEvents(ctx context.Context, clientID uuid.UUID) ([]models.RoadmapEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roadmaps[clientID], nil
}

func (m *memRepo) SaveRecommendations(ctx context.Context, clientID uuid.UUID, recs []models.Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[clientID] = recs
	return nil
}

func (m *memRepo) ListRecommendations(ctx context.Context, clientID uuid.UUID) ([]models.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Recommendation{}, m.recs[clientID]...), nil
}

func (m *memRepo) RecentRuns(ctx context.Context, limit int) ([]models.IngestRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.IngestRun{}, m.runs...), nil
}

type fakeAuth struct {
	tokens *auth.Tokens
	emails map[string]string
}

func (f *fakeAuth) Signup(ctx context.Context, req auth.SignupRequest) (*auth.AuthResponse, error) {
	if _, ok := f.emails[req.Email]; ok {
		return nil, auth.ErrUserExists
	}
	f.emails[req.Email] = req.Password
	return f.respond(req.Email)
}

func (f *fakeAuth) Login(ctx context.Context, req auth.LoginRequest) (*auth.AuthResponse, error) {
	if pw, ok := f.emails[req.Email]; !ok || pw != req.Password {
		return nil, auth.ErrInvalidCreds
	}
	return f.respond(req.Email)
}

func (f *fakeAuth) respond(email string) (*auth.AuthResponse, error) {
	op := auth.Operator{ID: uuid.New(), Email: email}
	token, err := f.tokens.Issue(op.ID)
	if err != nil {
		return nil, err
	}
	return &auth.AuthResponse{Token: token, Operator: op}, nil
}

type fakeIngester struct {
	mu       sync.Mutex
	sources  map[string]ingest.IngestionStats
	release  chan struct{}
	imported []string
}

func (f *fakeIngester) IngestSource(ctx context.Context, sourceID string) (ingest.IngestionStats, error) {
	stats, ok := f.sources[sourceID]
	if !ok {
		return ingest.IngestionStats{}, fmt.Errorf("%w: %q", ingest.ErrUnknownSource, sourceID)
	}
	return stats, nil
}

func (f *fakeIngester) IngestAll(ctx context.Context) (map[string]ingest.IngestionStats, error) {
	if f.release != nil {
		<-f.release
	}
	return f.sources, nil
}

func (f *fakeIngester) ImportCSV(ctx context.Context, r io.Reader, source string) (ingest.IngestionStats, error) {
	raws, err := ingest.LoadCSV(r, source)
	if err != nil {
		return ingest.IngestionStats{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, raw := range raws {
		f.imported = append(f.imported, raw.Title)
	}
	return ingest.IngestionStats{TotalFound: len(raws), TotalSaved: len(raws)}, nil
}
