// Package scoring compares typed content against a task's reference material
// and returns a similarity score in [0, 1].
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/scribeworks/backend/internal/models"
)

// ErrUnavailable is returned when no score could be produced.
var ErrUnavailable = errors.New("scoring unavailable")

// Adapter scores content against a reference.
type Adapter interface {
	Score(ctx context.Context, content string, ref models.Reference) (float64, error)
}

// AdapterFunc lets a plain function act as an Adapter.
type AdapterFunc func(ctx context.Context, content string, ref models.Reference) (float64, error)

func (f AdapterFunc) Score(ctx context.Context, content string, ref models.Reference) (float64, error) {
	return f(ctx, content, ref)
}

// checkScore rejects values outside [0, 1].
func checkScore(score float64) (float64, error) {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return 0, fmt.Errorf("%w: score %v out of range", ErrUnavailable, score)
	}
	return score, nil
}
