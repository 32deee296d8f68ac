package scoring

import (
	"context"
	"strings"
	"unicode"

	"github.com/scribeworks/backend/internal/models"
)

// expectedLength is the content length that earns a full score when a task
// has no reference text to compare with.
const expectedLength = 100

// TextAdapter scores locally. With reference text it returns the F1 overlap
// of word tokens; without one it falls back to a length ratio.
type TextAdapter struct{}

func NewTextAdapter() *TextAdapter {
	return &TextAdapter{}
}

func (TextAdapter) Score(ctx context.Context, content string, ref models.Reference) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if strings.TrimSpace(ref.Text) == "" {
		n := len([]rune(strings.TrimSpace(content)))
		if n >= expectedLength {
			return 1, nil
		}
		return float64(n) / expectedLength, nil
	}

	want := tokenize(ref.Text)
	got := tokenize(content)
	if len(want) == 0 || len(got) == 0 {
		return 0, nil
	}

	counts := make(map[string]int, len(want))
	for _, w := range want {
		counts[w]++
	}
	matched := 0
	for _, g := range got {
		if counts[g] > 0 {
			counts[g]--
			matched++
		}
	}
	if matched == 0 {
		return 0, nil
	}

	precision := float64(matched) / float64(len(got))
	recall := float64(matched) / float64(len(want))
	return checkScore(2 * precision * recall / (precision + recall))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
