package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/david/grant-advisor/internal/models"
	"go.uber.org/zap"
)

// UseVocabulary is the closed set of allowed-use tags the tagger may assign.
var UseVocabulary = []string{
	"기술개발", "사업화", "시제품", "마케팅", "수출",
	"인력", "금융", "시설", "교육", "컨설팅",
}

// UseTagger fills allowed uses for announcements whose source gave none.
type UseTagger struct {
	gen Generator
	log *zap.Logger
}

func NewUseTagger(gen Generator, log *zap.Logger) *UseTagger {
	if log == nil {
		log = zap.NewNop()
	}
	return &UseTagger{gen: gen, log: log}
}

func (t *UseTagger) TagUses(ctx context.Context, ann models.Announcement) ([]string, error) {
	if t == nil || t.gen == nil {
		return nil, ErrNoProvider
	}
	prompt := fmt.Sprintf(`다음 정부 지원사업 공고의 지원금 사용 용도를 분류해주세요.

공고 제목: %s
공고 요약: %s

아래 목록에서만 골라주세요. 새로운 태그를 만들지 마세요.
사용 가능한 태그: %s

규칙:
1. 확실히 해당하는 태그만 선택합니다.
2. 해당하는 태그가 없으면 빈 배열을 반환합니다.
3. JSON으로만 응답합니다.

{"uses": ["태그1", "태그2"]}`, ann.Title, ann.Summary, strings.Join(UseVocabulary, ", "))

	resp, err := t.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	objs, err := parseObjects(resp)
	if err != nil || len(objs) == 0 {
		return nil, fmt.Errorf("parse tag response: %w", ErrNoJSON)
	}

	var tags []string
	if list, ok := field(objs[0], "uses", "용도").([]any); ok {
		for _, v := range list {
			tags = append(tags, coerceString(v))
		}
	}
	valid := filterValid(tags, UseVocabulary)
	t.log.Debug("tagged announcement", zap.String("id", ann.ID), zap.Strings("uses", valid))
	return valid, nil
}

// filterValid maps tags onto the vocabulary, case-insensitively, dropping
// anything the model invented and duplicates.
func filterValid(tags []string, allowed []string) []string {
	valid := make([]string, 0, len(tags))
	seen := make(map[string]bool)
	for _, t := range tags {
		t = strings.TrimSpace(t)
		for _, a := range allowed {
			if strings.EqualFold(a, t) {
				if !seen[a] {
					seen[a] = true
					valid = append(valid, a)
				}
				break
			}
		}
	}
	return valid
}
