package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/david/grant-advisor/internal/db"
	"github.com/david/grant-advisor/internal/ingest"
	"github.com/david/grant-advisor/internal/models"
	"github.com/labstack/echo/v4"
)

// clientRequest is the create/update body. Blank fields get the same
// defaults as a portfolio import.
type clientRequest struct {
	Name                string   `json:"name"`
	Region              string   `json:"region"`
	BusinessType        string   `json:"business_type"`
	YearsOperating      *int     `json:"years_operating"`
	Stage               string   `json:"stage"`
	Industry            string   `json:"industry"`
	IndustryKeywords    []string `json:"industry_keywords"`
	PreferredUses       []string `json:"preferred_uses"`
	PreferredBudgetBand string   `json:"preferred_budget_band"`
	Pinned              bool     `json:"pinned"`
}

func (r clientRequest) profile() (models.ClientProfile, error) {
	p := models.ClientProfile{
		Name:                strings.TrimSpace(r.Name),
		Region:              strings.TrimSpace(r.Region),
		BusinessType:        models.BusinessCorporation,
		YearsOperating:      ingest.DefaultClientYears,
		Industry:            strings.TrimSpace(r.Industry),
		IndustryKeywords:    trimAll(r.IndustryKeywords),
		PreferredUses:       trimAll(r.PreferredUses),
		PreferredBudgetBand: models.BudgetMedium,
		Pinned:              r.Pinned,
	}
	if p.Name == "" {
		return p, errors.New("name is required")
	}
	if p.Region == "" {
		p.Region = ingest.DefaultClientRegion
	}
	if bt := strings.ToLower(strings.TrimSpace(r.BusinessType)); bt != "" {
		p.BusinessType = models.BusinessType(bt)
		if !p.BusinessType.Valid() {
			return p, fmt.Errorf("unknown business_type %q", r.BusinessType)
		}
	}
	if r.YearsOperating != nil {
		if *r.YearsOperating < 0 {
			return p, errors.New("years_operating must not be negative")
		}
		p.YearsOperating = *r.YearsOperating
	}
	if strings.TrimSpace(r.Stage) == "" {
		p.Stage = ingest.InferStage(p.YearsOperating)
	} else {
		st, ok := ingest.NormalizeStage(r.Stage)
		if !ok {
			return p, fmt.Errorf("unknown stage %q", r.Stage)
		}
		p.Stage = st
	}
	if strings.TrimSpace(r.PreferredBudgetBand) != "" {
		band, ok := ingest.NormalizeBudgetBand(r.PreferredBudgetBand)
		if !ok {
			return p, fmt.Errorf("unknown preferred_budget_band %q", r.PreferredBudgetBand)
		}
		p.PreferredBudgetBand = band
	}
	return p, nil
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

func (s *Server) handleListClients(c echo.Context) error {
	clients, err := s.Repo.ListClients(c.Request().Context())
	if err != nil {
		return s.internalError(c, "list clients failed", err)
	}
	return c.JSON(http.StatusOK, clients)
}

func (s *Server) handleCreateClient(c echo.Context) error {
	var req clientRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	p, err := req.profile()
	if err != nil {
		return badRequest(c, err.Error())
	}
	stored, err := s.Repo.UpsertClient(c.Request().Context(), p)
	if err != nil {
		return s.internalError(c, "create client failed", err)
	}
	return c.JSON(http.StatusCreated, stored)
}

func (s *Server) handleGetClient(c echo.Context) error {
	id, ok := clientID(c)
	if !ok {
		return badRequest(c, "Invalid client id")
	}
	client, err := s.Repo.GetClient(c.Request().Context(), id)
	if err != nil {
		return s.storeError(c, "client", err)
	}
	return c.JSON(http.StatusOK, client)
}

func (s *Server) handleUpdateClient(c echo.Context) error {
	id, ok := clientID(c)
	if !ok {
		return badRequest(c, "Invalid client id")
	}
	var req clientRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	p, err := req.profile()
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	if _, err := s.Repo.GetClient(ctx, id); err != nil {
		return s.storeError(c, "client", err)
	}
	p.ID = id
	stored, err := s.Repo.UpsertClient(ctx, p)
	if err != nil {
		return s.internalError(c, "update client failed", err)
	}
	return c.JSON(http.StatusOK, stored)
}

func (s *Server) handleDeleteClient(c echo.Context) error {
	id, ok := clientID(c)
	if !ok {
		return badRequest(c, "Invalid client id")
	}
	if err := s.Repo.DeleteClient(c.Request().Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "client not found"})
		}
		return s.internalError(c, "delete client failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}
