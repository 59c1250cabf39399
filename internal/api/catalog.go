package api

import (
	"net/http"
	"strconv"

	"github.com/david/grant-advisor/internal/db"
	"github.com/labstack/echo/v4"
)

func (s *Server) handleListAnnouncements(c echo.Context) error {
	limit := 20
	offset := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		offset = o
	}

	page, err := s.Repo.ListAnnouncements(c.Request().Context(), db.AnnouncementFilter{
		Query:  c.QueryParam("q"),
		Source: c.QueryParam("source"),
		Region: c.QueryParam("region"),
		Status: c.QueryParam("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return s.internalError(c, "list announcements failed", err)
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) handleGetAnnouncement(c echo.Context) error {
	ann, err := s.Repo.GetAnnouncement(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.storeError(c, "announcement", err)
	}
	return c.JSON(http.StatusOK, ann)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Repo.Stats(c.Request().Context())
	if err != nil {
		return s.internalError(c, "stats failed", err)
	}
	return c.JSON(http.StatusOK, stats)
}
