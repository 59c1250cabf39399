package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/david/grant-advisor/internal/advisor"
	"github.com/david/grant-advisor/internal/ai"
	"github.com/david/grant-advisor/internal/export"
	"github.com/david/grant-advisor/internal/matching"
	"github.com/david/grant-advisor/internal/models"
	"github.com/david/grant-advisor/internal/roadmap"
	"github.com/labstack/echo/v4"
)

// shortRationale is how many rationale lines the match list shows.
const shortRationale = 3

type matchView struct {
	Announcement  models.Announcement `json:"announcement"`
	Score         int                 `json:"score"`
	Label         models.Label        `json:"label"`
	HardFail      bool                `json:"hard_fail"`
	Rationale     []string            `json:"rationale"`
	Review        models.Review       `json:"review"`
	DaysRemaining *int                `json:"days_remaining,omitempty"`
	DDay          string              `json:"d_day,omitempty"`
}

func (s *Server) handleMatches(c echo.Context) error {
	id, ok := clientID(c)
	if !ok {
		return badRequest(c, "Invalid client id")
	}
	top := s.TopN
	if raw := c.QueryParam("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return badRequest(c, "top must be a non-negative integer")
		}
		top = n
	}
	includeInfeasible := c.QueryParam("all") == "true"

	got, err := s.Advisor.Matches(c.Request().Context(), id, top, includeInfeasible)
	if err != nil {
		return s.storeError(c, "client", err)
	}

	today := s.today()
	views := make([]matchView, 0, len(got.Matches))
	for _, m := range got.Matches {
		v := matchView{
			Announcement: m.Announcement,
			Score:        m.Score,
			Label:        m.Label,
			HardFail:     m.HardFail,
			Rationale:    matching.SummarizeRationale(m.Rationale, shortRationale),
			Review:       m.Review,
		}
		if m.Announcement.DueDate != nil {
			days := roadmap.DaysRemaining(*m.Announcement.DueDate, today)
			v.DaysRemaining = &days
			v.DDay = roadmap.DDay(days)
		}
		views = append(views, v)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"client":  got.Client,
		"today":   today,
		"matches": views,
	})
}

type reviewRequest struct {
	Status  models.ReviewStatus `json:"status"`
	Comment string              `json:"comment"`
}

func (s *Server) handleReview(c echo.Context) error {
	id, ok := clientID(c)
	if !ok {
		return badRequest(c, "Invalid client id")
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	if !req.Status.Valid() {
		return badRequest(c, fmt.Sprintf("status must be pending, approved or rejected, got %q", req.Status))
	}

	review, err := s.Advisor.Review(c.Request().Context(), id, c.Param("annID"), req.Status, req.Comment)
	if err != nil {
		return s.storeError(c, "client or announcement", err)
	}
	return c.JSON(http.StatusOK, review)
}

type roadmapView struct {
	ClientID   string              `json:"client_id"`
	Today      models.Date         `json:"today"`
	Quarters   []quarterView       `json:"quarters"`
	Events     []roadmap.Countdown `json:"events"`
	Milestones []roadmap.Milestone `json:"milestones,omitempty"`
	Diff       string              `json:"diff,omitempty"`
	Previous   *int                `json:"previous_events,omitempty"`
}

type quarterView struct {
	Quarter string      `json:"quarter"`
	Months  []monthView `json:"months"`
}

type monthView struct {
	Month  string                `json:"month"`
	Events []models.RoadmapEvent `json:"events"`
}

func (s *Server) newRoadmapView(id string, r roadmap.Roadmap) roadmapView {
	today := s.today()
	v := roadmapView{
		ClientID: id,
		Today:    today,
		Quarters: make([]quarterView, 0, len(r.Quarters)),
		Events:   roadmap.Countdowns(r, today),
	}
	for _, q := range r.QuarterKeys() {
		qv := quarterView{Quarter: q}
		for _, m := range r.Quarters[q] {
			qv.Months = append(qv.Months, monthView{Month: m, Events: r.Months[m]})
		}
		v.Quarters = append(v.Quarters, qv)
	}
	return v
}

func (s *Server) handleRegenerateRoadmap(c echo.Context) error {
	id, ok := clientID(c)
	if !ok {
		return badRequest(c, "Invalid client id")
	}
	prev, next, err := s.Advisor.RegenerateRoadmap(c.Request().Context(), id)
	if err != nil {
		return s.storeError(c, "client", err)
	}
	v := s.newRoadmapView(id.String(), next)
	n := prev.Len()
	v.Previous = &n
	v.Diff = roadmap.Diff(roadmap.Render(prev), roadmap.Render(next))
	return c.JSON(http.StatusOK, v)
}

func (s *Server) handleGetRoadmap(c echo.Context) error {
	id, ok := clientID(c)
	if !ok {
		return badRequest(c, "Invalid client id")
	}
	ctx := c.Request().Context()
	r, err := s.Advisor.Roadmap(ctx, id, c.QueryParam("all") == "true")
	if err != nil {
		return s.storeError(c, "client", err)
	}
	v := s.newRoadmapView(id.String(), r)
	if c.QueryParam("milestones") == "true" {
		approved, err := s.Advisor.ApprovedAnnouncements(ctx, id)
		if err != nil {
			return s.internalError(c, "load approved announcements failed", err)
		}
		v.Milestones = roadmap.Milestones(approved)
	}
	return c.JSON(http.StatusOK, v)
}

func (s *Server) handleExport(c echo.Context) error {
	id, ok := clientID(c)
	if !ok {
		return badRequest(c, "Invalid client id")
	}
	raw := c.QueryParam("format")
	if raw == "" {
		raw = string(export.FormatCSV)
	}
	format, err := export.ParseFormat(raw)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	today := s.today()
	var header []string
	var rows [][]string
	switch kind := c.Param("kind"); kind {
	case "matches":
		got, err := s.Advisor.Matches(ctx, id, 0, true)
		if err != nil {
			return s.storeError(c, "client", err)
		}
		header, rows = export.MatchHeader, export.MatchRows(id, got.Results(), got.Reviews, today)
	case "roadmap":
		r, err := s.Advisor.Roadmap(ctx, id, c.QueryParam("all") == "true")
		if err != nil {
			return s.storeError(c, "client", err)
		}
		header, rows = export.RoadmapHeader, export.RoadmapRows(id, r, today)
	case "recommendations":
		if _, err := s.Repo.GetClient(ctx, id); err != nil {
			return s.storeError(c, "client", err)
		}
		recs, err := s.Repo.ListRecommendations(ctx, id)
		if err != nil {
			return s.internalError(c, "list recommendations failed", err)
		}
		header, rows = export.RecommendationHeader, export.RecommendationRows(recs)
	default:
		return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown export %q", kind)})
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, header, rows); err != nil {
		return s.internalError(c, "export failed", err)
	}
	contentType, ext := "text/plain; charset=utf-8", "txt"
	switch format {
	case export.FormatCSV:
		contentType, ext = "text/csv; charset=utf-8", "csv"
	case export.FormatMarkdown:
		contentType, ext = "text/markdown; charset=utf-8", "md"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s-%s.%s"`, c.Param("kind"), id, ext))
	return c.Blob(http.StatusOK, contentType, buf.Bytes())
}

func (s *Server) handleListRecommendations(c echo.Context) error {
	id, ok := clientID(c)
	if !ok {
		return badRequest(c, "Invalid client id")
	}
	ctx := c.Request().Context()
	if _, err := s.Repo.GetClient(ctx, id); err != nil {
		return s.storeError(c, "client", err)
	}
	recs, err := s.Repo.ListRecommendations(ctx, id)
	if err != nil {
		return s.internalError(c, "list recommendations failed", err)
	}
	return c.JSON(http.StatusOK, recs)
}

func (s *Server) handleRecommend(c echo.Context) error {
	id, ok := clientID(c)
	if !ok {
		return badRequest(c, "Invalid client id")
	}
	recs, err := s.Advisor.Recommend(c.Request().Context(), id)
	switch {
	case errors.Is(err, advisor.ErrNoRecommender), errors.Is(err, ai.ErrNoProvider):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "recommender is not configured"})
	case errors.Is(err, ai.ErrNoJSON):
		s.Log.Warn("recommender returned no JSON")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "recommender returned an unreadable answer"})
	case err != nil:
		return s.storeError(c, "client", err)
	}
	return c.JSON(http.StatusOK, recs)
}
