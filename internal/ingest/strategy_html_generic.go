package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// HTMLStrategy scrapes announcement listings with CSS selectors taken from
// the registry. List pages go through colly; detail pages and attachments go
// through the pipeline fetcher.
type HTMLStrategy struct{}

// listItem is what one listing row yields before detail enrichment.
type listItem struct {
	Title  string
	Link   string
	Agency string
	Period string
	Status string
}

// parseListItem reads one container element. resolve turns a relative link
// into an absolute one.
func parseListItem(s *goquery.Selection, sel SelectorConfig, resolve func(string) string) (listItem, bool) {
	linkAttr := sel.LinkAttr
	if linkAttr == "" {
		linkAttr = "href"
	}
	var link string
	if sel.Link == "" || sel.Link == "." {
		link = strings.TrimSpace(s.AttrOr(linkAttr, ""))
	} else {
		link = strings.TrimSpace(s.Find(sel.Link).First().AttrOr(linkAttr, ""))
	}

	text := func(css string) string {
		if css == "" {
			return ""
		}
		return normalizeSpace(s.Find(css).First().Text())
	}

	item := listItem{
		Title:  text(sel.Title),
		Agency: text(sel.Agency),
		Period: text(sel.Period),
		Status: text(sel.Status),
	}
	if item.Title == "" || link == "" || strings.HasPrefix(link, "javascript:") {
		return item, false
	}
	item.Link = CanonicalizeURL(resolve(link))
	return item, true
}

func (it listItem) raw(sourceID string) RawAnnouncement {
	hash := sha1.Sum([]byte(it.Link))
	return RawAnnouncement{
		ID:      sourceID + "-" + hex.EncodeToString(hash[:])[:12],
		Title:   it.Title,
		Agency:  it.Agency,
		Source:  sourceID,
		DueDate: it.Period,
		URL:     it.Link,
		Status:  it.Status,
	}
}

// applyDetail fills raw from a parsed detail page.
func applyDetail(raw *RawAnnouncement, doc *goquery.Document, cfg DetailConfig, pageURL string) {
	sel := cfg.Selectors
	text := func(css string) string {
		if css == "" {
			return ""
		}
		return normalizeSpace(doc.Find(css).Text())
	}

	if sel.Description != "" {
		if html, err := doc.Find(sel.Description).First().Html(); err == nil && strings.TrimSpace(html) != "" {
			raw.Description = strings.ToValidUTF8(html, "")
		}
	}
	if v := text(sel.Amount); v != "" {
		raw.Amount = v
	}
	if v := text(sel.Region); v != "" {
		raw.Region = v
	}
	if v := text(sel.Eligibility); v != "" {
		raw.Eligibility = v
	}
	if v := text(sel.Keywords); v != "" {
		raw.Keywords = v
	}
	if v := text(sel.Uses); v != "" {
		raw.AllowedUses = v
	}

	if sel.Attachments != "" {
		base, _ := url.Parse(pageURL)
		doc.Find(sel.Attachments).Each(func(_ int, a *goquery.Selection) {
			href := strings.TrimSpace(a.AttrOr("href", ""))
			if href == "" {
				return
			}
			if base != nil {
				if ref, err := url.Parse(href); err == nil {
					href = base.ResolveReference(ref).String()
				}
			}
			raw.Attachments = append(raw.Attachments, href)
		})
	}

	sched := ScanSchedule(doc.Text())
	if raw.InfoSessionDate == "" && sched.InfoSession != nil {
		raw.InfoSessionDate = sched.InfoSession.String()
	}
	if ParseOptionalDate(raw.DueDate) == nil && !strings.Contains(raw.DueDate, "~") && sched.Due != nil {
		raw.DueDate = sched.Due.String()
	}
}

func (s *HTMLStrategy) enrich(ctx context.Context, raw *RawAnnouncement, cfg DetailConfig, p *Pipeline) error {
	doc, err := p.Fetcher.Fetch(ctx, raw.URL)
	if err != nil {
		return err
	}
	defer doc.Body.Close()

	page, err := goquery.NewDocumentFromReader(doc.Body)
	if err != nil {
		return fmt.Errorf("parse detail: %w", err)
	}
	applyDetail(raw, page, cfg, raw.URL)

	if !cfg.ScanPDF || raw.InfoSessionDate != "" {
		return nil
	}
	for _, link := range raw.Attachments {
		if !isPDFLink(link) {
			continue
		}
		sched, err := scheduleFromPDF(ctx, p.Fetcher, link)
		if err != nil {
			p.Log.Debug("pdf scan failed", zap.String("url", link), zap.Error(err))
			continue
		}
		if sched.InfoSession != nil {
			raw.InfoSessionDate = sched.InfoSession.String()
			break
		}
	}
	return nil
}

func (s *HTMLStrategy) Run(ctx context.Context, config SourceConfig, p *Pipeline) (IngestionStats, error) {
	stats := IngestionStats{}

	sel := config.Selectors
	if sel.Container == "" {
		return stats, errors.New("selector 'container' is required for html_generic strategy")
	}
	maxPages := config.MaxPages
	if maxPages == 0 {
		maxPages = 1
	}
	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return stats, fmt.Errorf("invalid base URL: %w", err)
	}

	delay := time.Second
	if config.Fetch.RateLimitRPS > 0 {
		delay = time.Duration(float64(time.Second) / config.Fetch.RateLimitRPS)
	}
	timeout := 30 * time.Second
	if config.Fetch.TimeoutSeconds > 0 {
		timeout = time.Duration(config.Fetch.TimeoutSeconds) * time.Second
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsedURL.Hostname()),
		colly.UserAgent(userAgent),
		colly.DetectCharset(),
		colly.AllowURLRevisit(),
	)
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       delay,
		RandomDelay: delay / 2,
	}); err != nil {
		return stats, fmt.Errorf("colly limit: %w", err)
	}
	collector.SetRequestTimeout(timeout)

	var items []listItem
	var nextPageURL string

	collector.OnHTML(sel.Container, func(e *colly.HTMLElement) {
		if item, ok := parseListItem(e.DOM, sel, e.Request.AbsoluteURL); ok {
			items = append(items, item)
		}
	})
	if config.Pagination.Next != "" {
		collector.OnHTML(config.Pagination.Next, func(e *colly.HTMLElement) {
			nextPageURL = e.Request.AbsoluteURL(e.Attr("href"))
		})
	}
	collector.OnError(func(r *colly.Response, err error) {
		p.Log.Warn("list page failed", zap.String("source", config.ID), zap.String("url", r.Request.URL.String()), zap.Error(err))
		stats.Errors++
	})

	visited := make(map[string]bool)
	currentURL := config.BaseURL
	for page := 1; page <= maxPages; page++ {
		canon := CanonicalizeURL(currentURL)
		if visited[canon] {
			p.Log.Info("pagination cycle", zap.String("source", config.ID), zap.String("url", canon))
			break
		}
		visited[canon] = true
		nextPageURL = ""

		p.Log.Debug("visiting list page", zap.String("source", config.ID), zap.Int("page", page), zap.String("url", currentURL))
		if err := collector.Visit(currentURL); err != nil {
			p.Log.Warn("visit failed", zap.String("source", config.ID), zap.Error(err))
			break
		}
		collector.Wait()

		if ctx.Err() != nil || nextPageURL == "" {
			break
		}
		currentURL = nextPageURL
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.TotalFound++
		raw := item.raw(config.ID)
		if config.Detail.Enabled {
			if err := s.enrich(ctx, &raw, config.Detail, p); err != nil {
				p.Log.Warn("detail fetch failed", zap.String("source", config.ID), zap.String("url", raw.URL), zap.Error(err))
			}
		}
		if err := p.SaveRaw(ctx, raw); err != nil {
			p.Log.Warn("save failed", zap.String("source", config.ID), zap.String("title", raw.Title), zap.Error(err))
			stats.Errors++
			continue
		}
		stats.TotalSaved++
	}
	return stats, nil
}
