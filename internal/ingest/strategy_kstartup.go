package ingest

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// KStartupStrategy pages the data.go.kr K-Startup announcement API, which
// answers in a generic <item><col name="..."> XML shape.
type KStartupStrategy struct{}

type kstartupResponse struct {
	XMLName    xml.Name
	TotalCount int            `xml:"totalCount"`
	Items      []kstartupItem `xml:"data>item"`
	// Gateway errors come back as OpenAPI_ServiceResponse.
	ErrMsg        string `xml:"cmmMsgHeader>errMsg"`
	ReturnAuthMsg string `xml:"cmmMsgHeader>returnAuthMsg"`
}

type kstartupItem struct {
	Cols []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:",chardata"`
	} `xml:"col"`
}

func (it kstartupItem) fields() map[string]string {
	m := make(map[string]string, len(it.Cols))
	for _, c := range it.Cols {
		m[c.Name] = strings.TrimSpace(c.Value)
	}
	return m
}

const kstartupDateLayout = "20060102"

func (s *KStartupStrategy) pageURL(config SourceConfig, p *Pipeline, page, size int) (string, error) {
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	today := p.today()
	lookback := config.LookbackDays
	if lookback <= 0 {
		lookback = 30
	}

	q := u.Query()
	q.Set("serviceKey", config.APIKey)
	q.Set("pageNo", strconv.Itoa(page))
	q.Set("numOfRows", strconv.Itoa(size))
	q.Set("startDate", today.AddDays(-lookback).Time().Format(kstartupDateLayout))
	q.Set("endDate", today.Time().Format(kstartupDateLayout))
	for k, v := range config.Params {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func decodeKStartup(r io.Reader) (kstartupResponse, error) {
	var resp kstartupResponse
	if err := xml.NewDecoder(r).Decode(&resp); err != nil {
		return resp, fmt.Errorf("decode k-startup xml: %w", err)
	}
	if resp.XMLName.Local == "OpenAPI_ServiceResponse" || resp.ErrMsg != "" {
		msg := strings.TrimSpace(resp.ErrMsg + " " + resp.ReturnAuthMsg)
		return resp, fmt.Errorf("k-startup api error: %s", msg)
	}
	return resp, nil
}

// kstartupRaw maps one API item onto the raw announcement fields.
func kstartupRaw(f map[string]string, sourceID string) RawAnnouncement {
	raw := RawAnnouncement{
		Title:             firstNonEmpty(f["biz_pbanc_nm"], f["intg_pbanc_biz_nm"]),
		Agency:            f["pbanc_ntrp_nm"],
		Source:            sourceID,
		Region:            f["supt_regin"],
		OpenDate:          f["pbanc_rcpt_bgng_dt"],
		DueDate:           f["pbanc_rcpt_end_dt"],
		Keywords:          f["supt_biz_clsfc"],
		MaxYearsOperating: f["biz_enyy"],
		URL:               firstNonEmpty(f["detl_pg_url"], f["biz_gdnc_url"], f["biz_aply_url"]),
		Description:       f["pbanc_ctnt"],
		Eligibility:       firstNonEmpty(f["aply_trgt_ctnt"], f["aply_trgt"]),
		Status:            f["rcrt_prgs_yn"],
	}
	if sn := f["pbanc_sn"]; sn != "" {
		raw.ID = sourceID + "-" + sn
	}
	return raw
}

func (s *KStartupStrategy) Run(ctx context.Context, config SourceConfig, p *Pipeline) (IngestionStats, error) {
	stats := IngestionStats{}
	if config.APIKey == "" {
		return stats, errors.New("k-startup service key is not configured")
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
		pageURL, err := s.pageURL(config, p, page, size)
		if err != nil {
			return stats, err
		}
		doc, err := p.Fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return stats, fmt.Errorf("fetch page %d: %w", page, err)
		}
		resp, err := decodeKStartup(doc.Body)
		doc.Body.Close()
		if err != nil {
			return stats, fmt.Errorf("page %d: %w", page, err)
		}

		for _, item := range resp.Items {
			raw := kstartupRaw(item.fields(), config.ID)
			if raw.Title == "" {
				continue
			}
			stats.TotalFound++
			if err := p.SaveRaw(ctx, raw); err != nil {
				p.Log.Warn("save failed", zap.String("source", config.ID), zap.String("title", raw.Title), zap.Error(err))
				stats.Errors++
				continue
			}
			stats.TotalSaved++
		}

		p.Log.Debug("k-startup page", zap.Int("page", page), zap.Int("items", len(resp.Items)), zap.Int("total", resp.TotalCount))
		if len(resp.Items) < size || page*size >= resp.TotalCount {
			break
		}
	}
	return stats, nil
}
