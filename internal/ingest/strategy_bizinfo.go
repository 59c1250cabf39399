package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

// BizinfoStrategy pages the bizinfo.go.kr support programme feed in JSON mode.
// The feed has no total count; a short page ends the run.
type BizinfoStrategy struct{}

type bizinfoResponse struct {
	JSONArray struct {
		Item []bizinfoItem `json:"item"`
	} `json:"jsonArray"`
	// Some error replies are a bare object with reqErr.
	ReqErr string `json:"reqErr"`
}

type bizinfoItem struct {
	ID            string `json:"pblancId"`
	Title         string `json:"pblancNm"`
	Ministry      string `json:"jrsdInsttNm"`
	Executor      string `json:"excInsttNm"`
	Summary       string `json:"bsnsSumryCn"`
	Period        string `json:"reqstBeginEndDe"`
	URL           string `json:"pblancUrl"`
	Hashtags      string `json:"hashtags"`
	Realm         string `json:"pldirSportRealmLclasCodeNm"`
	Target        string `json:"trgetNm"`
	Region        string `json:"areaNm"`
	InquiryPeriod string `json:"reqstMthPapersCn"`
}

func (it bizinfoItem) raw(sourceID string) RawAnnouncement {
	raw := RawAnnouncement{
		Title:       it.Title,
		Agency:      firstNonEmpty(it.Executor, it.Ministry),
		Source:      sourceID,
		Region:      it.Region,
		DueDate:     it.Period,
		Keywords:    it.Hashtags,
		AllowedUses: it.Realm,
		URL:         it.URL,
		Description: it.Summary,
		Eligibility: it.Target,
	}
	if it.ID != "" {
		raw.ID = sourceID + "-" + it.ID
	}
	// Bizinfo publishes the info session only inside the summary text.
	if sched := ScanSchedule(HTMLToText(it.Summary)); sched.InfoSession != nil {
		raw.InfoSessionDate = sched.InfoSession.String()
	}
	return raw
}

func (s *BizinfoStrategy) pageURL(config SourceConfig, page, size int) (string, error) {
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("crtfcKey", config.APIKey)
	q.Set("dataType", "json")
	q.Set("pageUnit", strconv.Itoa(size))
	q.Set("pageIndex", strconv.Itoa(page))
	for k, v := range config.Params {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func decodeBizinfo(r io.Reader) ([]bizinfoItem, error) {
	var resp bizinfoResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode bizinfo json: %w", err)
	}
	if resp.ReqErr != "" {
		return nil, fmt.Errorf("bizinfo api error: %s", resp.ReqErr)
	}
	return resp.JSONArray.Item, nil
}

func (s *BizinfoStrategy) Run(ctx context.Context, config SourceConfig, p *Pipeline) (IngestionStats, error) {
	stats := IngestionStats{}
	if config.APIKey == "" {
		return stats, errors.New("bizinfo crtfcKey is not configured")
	}
	size := config.PageSize
	if size <= 0 {
		size = 100
	}
	maxPages := config.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}

	for page := 1; page <= maxPages; page++ {
		pageURL, err := s.pageURL(config, page, size)
		if err != nil {
			return stats, err
		}
		doc, err := p.Fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return stats, fmt.Errorf("fetch page %d: %w", page, err)
		}
		items, err := decodeBizinfo(doc.Body)
		doc.Body.Close()
		if err != nil {
			return stats, fmt.Errorf("page %d: %w", page, err)
		}

		for _, item := range items {
			if item.Title == "" {
				continue
			}
			stats.TotalFound++
			raw := item.raw(config.ID)
			if err := p.SaveRaw(ctx, raw); err != nil {
				p.Log.Warn("save failed", zap.String("source", config.ID), zap.String("title", raw.Title), zap.Error(err))
				stats.Errors++
				continue
			}
			stats.TotalSaved++
		}

		p.Log.Debug("bizinfo page", zap.Int("page", page), zap.Int("items", len(items)))
		if len(items) < size {
			break
		}
	}
	return stats, nil
}
