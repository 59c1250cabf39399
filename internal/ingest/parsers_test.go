package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/david/grant-advisor/internal/models"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want models.Date
	}{
		{"2025-09-20", models.Date{Year: 2025, Month: time.September, Day: 20}},
		{"2025.09.20", models.Date{Year: 2025, Month: time.September, Day: 20}},
		{"2025/9/5", models.Date{Year: 2025, Month: time.September, Day: 5}},
		{"  2025.09.20.  ", models.Date{Year: 2025, Month: time.September, Day: 20}},
		{"20250920", models.Date{Year: 2025, Month: time.September, Day: 20}},
		{"20250920 1230", models.Date{Year: 2025, Month: time.September, Day: 20}},
		{"2025-09-20 18:00", models.Date{Year: 2025, Month: time.September, Day: 20}},
		{"2025-09-20T18:00:00+09:00", models.Date{Year: 2025, Month: time.September, Day: 20}},
		{"2024-02-29", models.Date{Year: 2024, Month: time.February, Day: 29}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if err != nil {
				t.Fatalf("ParseDate(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDateRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"2025-02-30",
		"2025-13-01",
		"2025-09.20",
		"20/09/2025",
		"9월 20일",
		"2025-09-20 마감",
		"soon",
		"2025092",
		"202509201230",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseDate(in)
			if !errors.Is(err, ErrMalformedDate) {
				t.Fatalf("ParseDate(%q) error = %v, want ErrMalformedDate", in, err)
			}
			if ParseOptionalDate(in) != nil {
				t.Fatalf("ParseOptionalDate(%q) should be nil", in)
			}
		})
	}
}

func TestParseDateRange(t *testing.T) {
	start, end := ParseDateRange("2025-09-01 ~ 2025-09-20")
	if start == nil || start.String() != "2025-09-01" {
		t.Fatalf("start = %v", start)
	}
	if end == nil || end.String() != "2025-09-20" {
		t.Fatalf("end = %v", end)
	}

	start, end = ParseDateRange("상시 ~ 2025.10.31")
	if start != nil {
		t.Fatalf("malformed start should be nil, got %v", start)
	}
	if end == nil || end.String() != "2025-10-31" {
		t.Fatalf("end = %v", end)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"50000000", 50_000_000},
		{"50,000,000원", 50_000_000},
		{"5천만원", 50_000_000},
		{"1억", 100_000_000},
		{"1.5억", 150_000_000},
		{"1억 5천만원", 150_000_000},
		{"최대 3억원", 300_000_000},
		{"300백만원", 300_000_000},
		{"500만", 5_000_000},
		{"2조", 2_000_000_000_000},
		{"up to 20,000,000 KRW", 20_000_000},
		{"1000 won", 1000},
		{"0.5만", 5000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if err != nil {
				t.Fatalf("ParseAmount(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("ParseAmount(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAmountRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"원",
		"협의",
		"5천만 1억",
		"1억 1억",
		"1,00,000",
		"약 1억",
		"1억원 이내",
		"$500",
		"9223372036854775808",
		"99999999999999999999",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseAmount(in)
			if !errors.Is(err, ErrMalformedAmount) {
				t.Fatalf("ParseAmount(%q) error = %v, want ErrMalformedAmount", in, err)
			}
			if ParseOptionalAmount(in) != nil {
				t.Fatalf("ParseOptionalAmount(%q) should be nil", in)
			}
		})
	}
}

func TestFormatShortKRW(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{300_000_000, "3억원"},
		{120_000_000, "1.2억원"},
		{100_000_000, "1억원"},
		{80_000_000, "8천만원"},
		{15_000_000, "1.5천만원"},
		{5_000_000, "500만원"},
		{9_000, "9000원"},
	}
	for _, tt := range tests {
		if got := FormatShortKRW(tt.in); got != tt.want {
			t.Errorf("FormatShortKRW(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBudgetBandFor(t *testing.T) {
	tests := []struct {
		in   int64
		want models.BudgetBand
	}{
		{0, models.BudgetSmall},
		{39_999_999, models.BudgetSmall},
		{40_000_000, models.BudgetMedium},
		{99_999_999, models.BudgetMedium},
		{100_000_000, models.BudgetLarge},
		{5_000_000_000, models.BudgetLarge},
	}
	for _, tt := range tests {
		if got := BudgetBandFor(tt.in); got != tt.want {
			t.Errorf("BudgetBandFor(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
