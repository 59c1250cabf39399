package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/david/grant-advisor/internal/ingest"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// maxImportBytes bounds an uploaded catalog file.
const maxImportBytes = 20 << 20

func (s *Server) handleIngestSource(c echo.Context) error {
	sourceID := c.Param("id")
	stats, err := s.Ingester.IngestSource(c.Request().Context(), sourceID)
	if err != nil {
		if errors.Is(err, ingest.ErrUnknownSource) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		s.Log.Error("ingest source failed", zap.String("source", sourceID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("%s ingestion complete", sourceID),
		"stats":   stats,
	})
}

// handleIngestAll runs every enabled source in the background. Only one job
// runs at a time; progress is polled through handleJobStatus.
func (s *Server) handleIngestAll(c echo.Context) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "An ingest job is already running",
			"job_id": job.ID,
		})
	}

	// context.WithoutCancel detaches from the request but keeps its values.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), ingestAllTimeout,
	)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go func() {
		defer jobCancel()
		results, err := s.Ingester.IngestAll(jobCtx)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		job.Result = results
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			s.Log.Error("ingest job failed", zap.String("job", jobID), zap.Error(err))
			return
		}
		job.Status = "completed"
		s.Log.Info("ingest job completed", zap.String("job", jobID), zap.Int("sources", len(results)))
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Ingest job started",
		"job_id":  jobID,
		"poll":    fmt.Sprintf("/api/v1/ingest/job/%s", jobID),
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	job := s.runningJob

	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return c.JSON(http.StatusOK, resp)
}

// handleImportCSV loads a catalog export sent as the multipart field "file".
func (s *Server) handleImportCSV(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "multipart field \"file\" is required")
	}
	if fh.Size > maxImportBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "cannot read upload")
	}
	defer f.Close()

	source := strings.TrimSpace(c.FormValue("source"))
	if source == "" {
		source = "csv"
	}
	stats, err := s.Ingester.ImportCSV(c.Request().Context(), f, source)
	if err != nil {
		s.Log.Warn("csv import failed", zap.String("file", fh.Filename), zap.Error(err))
		return badRequest(c, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("imported %s", fh.Filename),
		"stats":   stats,
	})
}

func (s *Server) handleRecentRuns(c echo.Context) error {
	limit := 20
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}
	runs, err := s.Repo.RecentRuns(c.Request().Context(), limit)
	if err != nil {
		return s.internalError(c, "recent runs failed", err)
	}
	return c.JSON(http.StatusOK, runs)
}
