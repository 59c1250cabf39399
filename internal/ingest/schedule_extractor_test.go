package ingest

import (
	"testing"

	"github.com/david/grant-advisor/internal/models"
)

func TestScanSchedule(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantSession string
		wantDue     string
	}{
		{
			name:        "numeric dates",
			text:        "□ 사업설명회: 2025.09.05(금) 14:00 코엑스\n□ 접수마감: 2025. 9. 20. 18:00까지",
			wantSession: "2025-09-05",
			wantDue:     "2025-09-20",
		},
		{
			name:    "period takes closing date",
			text:    "신청기간 : 2025-09-01 ~ 2025-09-30 / 문의 02-000-0000",
			wantDue: "2025-09-30",
		},
		{
			name:        "korean written dates",
			text:        "온라인 설명회는 2025년 10월 2일에 진행되며 마감일은 2025년 10월 17일입니다.",
			wantSession: "2025-10-02",
			wantDue:     "2025-10-17",
		},
		{
			name:    "second date after hint is not a period",
			text:    "접수마감 2025.11.03, 발표 2025.12.01",
			wantDue: "2025-11-03",
		},
		{
			name: "no hints",
			text: "2025.09.05 공지",
		},
		{
			name: "hint too far from date",
			text: "설명회 " + string(make([]byte, 200)) + " 2025.09.05",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScanSchedule(tt.text)
			if s := dateString(got.InfoSession); s != tt.wantSession {
				t.Fatalf("info session = %q, want %q", s, tt.wantSession)
			}
			if s := dateString(got.Due); s != tt.wantDue {
				t.Fatalf("due = %q, want %q", s, tt.wantDue)
			}
		})
	}
}

func TestIsPDFLink(t *testing.T) {
	tests := map[string]bool{
		"https://x.kr/files/notice.PDF":       true,
		"https://x.kr/files/notice.pdf?dl=1":  true,
		"https://x.kr/files/notice.hwp":       false,
		"https://x.kr/download.do?file=a.pdf": false,
	}
	for in, want := range tests {
		if got := isPDFLink(in); got != want {
			t.Errorf("isPDFLink(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestExtractPDFTextRejectsGarbage(t *testing.T) {
	if _, err := extractPDFText([]byte("not a pdf")); err == nil {
		t.Fatal("expected an error for non-pdf content")
	}
}

func dateString(d *models.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
