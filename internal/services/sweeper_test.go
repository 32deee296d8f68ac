package services

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/backend/internal/models"
)

func TestNewSweeper_InvalidSchedule(t *testing.T) {
	f := newFixture(t)
	log, _ := test.NewNullLogger()

	_, err := NewSweeper(f.registry, "every now and then", f.metrics, log)
	assert.Error(t, err)
}

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	log, _ := test.NewNullLogger()

	writer := f.account(t, models.RoleWriter, "5.00")
	task := f.task(t, models.TaskKindPaid, "5.00", "10.00")
	lockFor(t, f, task.ID, writer)

	sweeper, err := NewSweeper(f.registry, "@every 1h", f.metrics, log)
	require.NoError(t, err)

	assert.Zero(t, sweeper.Sweep(ctx, time.Now()))
	assert.Equal(t, 1, sweeper.Sweep(ctx, time.Now().Add(31*time.Minute)))
	assert.Equal(t, "5.00", f.balance(t, writer))
}

func TestSweeper_StartStop(t *testing.T) {
	f := newFixture(t)
	log, _ := test.NewNullLogger()

	sweeper, err := NewSweeper(f.registry, "@every 1h", nil, log)
	require.NoError(t, err)

	sweeper.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sweeper.Stop(ctx)
}
