package services

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/scoring"
)

type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Score(ctx context.Context, content string, ref models.Reference) (float64, error) {
	args := m.Called(ctx, content, ref)
	return args.Get(0).(float64), args.Error(1)
}

// blockingScorer waits for the context to expire, like a hung OCR service.
type blockingScorer struct{}

func (blockingScorer) Score(ctx context.Context, content string, ref models.Reference) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

// gatedScorer holds scoring of the gated content until release is closed and
// fails every other content.
type gatedScorer struct {
	gated   string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedScorer) Score(ctx context.Context, content string, ref models.Reference) (float64, error) {
	if content != g.gated {
		return 0, scoring.ErrUnavailable
	}
	close(g.entered)
	<-g.release
	return 0.95, nil
}

// fixedScorer always returns the same score.
type fixedScorer float64

func (s fixedScorer) Score(context.Context, string, models.Reference) (float64, error) {
	return float64(s), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
