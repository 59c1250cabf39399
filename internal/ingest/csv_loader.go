package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/david/grant-advisor/internal/models"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// column lists the header spellings accepted for one field. Exact matches
// are tried before containment, and containment only uses Korean aliases.
type column struct {
	field   string
	aliases []string
}

var announcementColumns = []column{
	{"id", []string{"공고id", "공고번호", "id", "announcement_id"}},
	{"title", []string{"공고명", "사업명", "과제명", "title"}},
	{"agency", []string{"주관기관", "소관기관", "기관명", "기관", "agency"}},
	{"source", []string{"출처", "채널", "source", "source_channel"}},
	{"region", []string{"지역", "region"}},
	{"stage", []string{"창업단계", "단계", "stage"}},
	{"max_years", []string{"업력제한", "업력", "max_years", "max_years_operating"}},
	{"open_date", []string{"접수시작", "공고일", "시작일", "open_date"}},
	{"due_date", []string{"접수마감", "마감일", "마감", "접수기간", "due_date", "deadline"}},
	{"info_session", []string{"사전설명회", "설명회", "오리엔테이션", "info_session", "info_session_date"}},
	{"amount", []string{"지원금", "지원한도", "금액", "한도", "보조금", "amount"}},
	{"uses", []string{"사용처", "지원분야", "지원내용", "바우처", "uses", "allowed_uses"}},
	{"keywords", []string{"키워드", "분야", "산업", "카테고리", "태그", "keywords"}},
	{"budget_band", []string{"예산구간", "지원규모", "budget_band"}},
	{"url", []string{"링크", "상세", "웹사이트", "url", "link"}},
	{"description", []string{"사업개요", "내용", "description", "summary"}},
	{"eligibility", []string{"지원대상", "자격", "eligibility"}},
	{"status", []string{"상태", "status"}},
}

var clientColumns = []column{
	{"name", []string{"회사명", "기업명", "고객사", "name", "company"}},
	{"region", []string{"소재지", "지역", "region"}},
	{"business_type", []string{"사업자유형", "기업형태", "business_type"}},
	{"years", []string{"업력", "설립연차", "years", "years_operating"}},
	{"founded", []string{"설립일", "창업일", "설립", "founded"}},
	{"stage", []string{"창업단계", "단계", "stage"}},
	{"industry", []string{"업종", "industry"}},
	{"keywords", []string{"키워드", "분야", "산업", "keywords", "industry_keywords"}},
	{"preferred_uses", []string{"선호용도", "지원희망", "용도", "preferred_uses"}},
	{"preferred_budget", []string{"예산", "budget", "preferred_budget", "preferred_budget_band"}},
}

// ErrNoTitleColumn is returned when a catalog file has no recognizable title.
var ErrNoTitleColumn = errors.New("no title column")

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(h), ""))
}

func hasHangul(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

// mapHeaders assigns each field to at most one column index.
func mapHeaders(headers []string, columns []column) map[string]int {
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = normalizeHeader(h)
	}
	taken := make(map[int]bool)
	out := make(map[string]int)

	for _, col := range columns {
		for _, alias := range col.aliases {
			for i, h := range norm {
				if !taken[i] && h == alias {
					out[col.field] = i
					taken[i] = true
					break
				}
			}
			if _, ok := out[col.field]; ok {
				break
			}
		}
	}
	for _, col := range columns {
		if _, ok := out[col.field]; ok {
			continue
		}
	aliases:
		for _, alias := range col.aliases {
			if !hasHangul(alias) {
				continue
			}
			for i, h := range norm {
				if !taken[i] && strings.Contains(h, alias) {
					out[col.field] = i
					taken[i] = true
					break aliases
				}
			}
		}
	}
	return out
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return cr
}

// readRows reads the header and yields one field->cell map per data row.
func readRows(r io.Reader, columns []column, fn func(line int, row map[string]interface{}) error) (map[string]int, error) {
	cr := newCSVReader(r)
	headers, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	mapping := mapHeaders(headers, columns)

	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return mapping, fmt.Errorf("line %d: %w", line, err)
		}
		row := make(map[string]interface{}, len(mapping))
		blank := true
		for field, idx := range mapping {
			if idx < len(record) {
				v := strings.TrimSpace(record[idx])
				row[field] = v
				if v != "" {
					blank = false
				}
			}
		}
		if blank {
			continue
		}
		if err := fn(line, row); err != nil {
			return mapping, err
		}
	}
	return mapping, nil
}

func decodeRow(row map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(row)
}

// LoadCSV reads a catalog export. Headers are matched through the alias
// table; rows without a title are skipped. source fills the channel when the
// file has no source column.
func LoadCSV(r io.Reader, source string) ([]RawAnnouncement, error) {
	var out []RawAnnouncement
	mapping, err := readRows(r, announcementColumns, func(line int, row map[string]interface{}) error {
		var raw RawAnnouncement
		if err := decodeRow(row, &raw); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(raw.Title) == "" {
			return nil
		}
		if raw.Source == "" {
			raw.Source = source
		}
		out = append(out, raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, ok := mapping["title"]; !ok {
		return nil, ErrNoTitleColumn
	}
	return out, nil
}

// LoadClientsCSV reads a client portfolio export. today anchors the years
// computation for rows that only carry a founding date.
func LoadClientsCSV(r io.Reader, today models.Date) ([]models.ClientProfile, error) {
	var out []models.ClientProfile
	_, err := readRows(r, clientColumns, func(line int, row map[string]interface{}) error {
		var raw RawClient
		if err := decodeRow(row, &raw); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(raw.Name) == "" {
			return nil
		}
		out = append(out, ClientFromRaw(raw, today))
		return nil
	})
	return out, err
}

var leadingIntRe = regexp.MustCompile(`^\s*(\d+)`)

// Client defaults used when a portfolio row leaves a field blank.
const (
	DefaultClientRegion = "서울"
	DefaultClientYears  = 1
)

// InferStage maps operating years to a stage: none is pre-launch, up to three
// years is early, anything longer is growth.
func InferStage(years int) models.Stage {
	switch {
	case years <= 0:
		return models.StagePreLaunch
	case years <= 3:
		return models.StageEarly
	default:
		return models.StageGrowth
	}
}

// ClientFromRaw normalizes one portfolio row. Stage is taken from the row
// when present and inferred from years only when it is not.
func ClientFromRaw(raw RawClient, today models.Date) models.ClientProfile {
	now := time.Now().UTC()
	p := models.ClientProfile{
		ID:                  uuid.New(),
		Name:                normalizeSpace(raw.Name),
		Region:              firstNonEmpty(raw.Region, DefaultClientRegion),
		BusinessType:        models.BusinessCorporation,
		YearsOperating:      DefaultClientYears,
		Industry:            normalizeSpace(raw.Industry),
		IndustryKeywords:    splitList(raw.Keywords),
		PreferredUses:       splitList(raw.PreferredUses),
		PreferredBudgetBand: models.BudgetMedium,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	bt := strings.ToLower(strings.TrimSpace(raw.BusinessType))
	if strings.Contains(bt, "개인") || bt == "individual" {
		p.BusinessType = models.BusinessIndividual
	}

	if m := leadingIntRe.FindStringSubmatch(raw.YearsOperating); m != nil {
		p.YearsOperating, _ = strconv.Atoi(m[1])
	} else if founded, err := ParseDate(raw.Founded); err == nil {
		p.YearsOperating = max(0, today.Year-founded.Year)
	}

	if st, ok := NormalizeStage(raw.Stage); ok {
		p.Stage = st
	} else {
		p.Stage = InferStage(p.YearsOperating)
	}

	if band, ok := NormalizeBudgetBand(raw.PreferredBudget); ok {
		p.PreferredBudgetBand = band
	} else if amt, err := ParseAmount(raw.PreferredBudget); err == nil {
		p.PreferredBudgetBand = BudgetBandFor(amt)
	}
	return p
}
