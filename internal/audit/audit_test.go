package audit

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/backend/internal/models"
)

func decode(t *testing.T, entry *logrus.Entry) Event {
	t.Helper()
	require.True(t, strings.HasPrefix(entry.Message, "AUDIT: "))
	var event Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(entry.Message, "AUDIT: ")), &event))
	return event
}

func TestLogger_LogLedgerEntry(t *testing.T) {
	log, hook := test.NewNullLogger()
	a := NewLogger(log)

	taskID := int64(7)
	subID := "sub-1"
	a.LogLedgerEntry(&models.LedgerEntry{
		ID:           "entry-1",
		AccountID:    "acct-1",
		Amount:       decimal.RequireFromString("-5"),
		Kind:         models.EntryDepositHold,
		TaskID:       &taskID,
		SubmissionID: &subID,
		CreatedAt:    time.Now(),
	})

	require.Len(t, hook.Entries, 1)
	event := decode(t, hook.LastEntry())
	assert.Equal(t, "DEPOSIT_HOLD", event.EventType)
	assert.Equal(t, "-5.00", event.Amount)
	assert.Equal(t, int64(7), event.TaskID)
	assert.Equal(t, "sub-1", event.SubmissionID)
	assert.Equal(t, "audit", hook.LastEntry().Data["component"])
}

func TestLogger_LogTaskTransition(t *testing.T) {
	log, hook := test.NewNullLogger()
	a := NewLogger(log)

	a.LogTaskTransition(&models.Task{ID: 3, Status: models.TaskStatusOpen}, "acct-1", models.TaskStatusLocked, "expiry")

	event := decode(t, hook.LastEntry())
	assert.Equal(t, "TASK_OPEN", event.EventType)
	details := event.Details.(map[string]any)
	assert.Equal(t, "LOCKED", details["from"])
	assert.Equal(t, "expiry", details["reason"])
}

func TestLogger_LogError(t *testing.T) {
	log, hook := test.NewNullLogger()
	a := NewLogger(log)

	a.LogError("SETTLE", "acct-1", errors.New("boom"))

	event := decode(t, hook.LastEntry())
	assert.Equal(t, "FAILED", event.Status)
	assert.Equal(t, "SETTLE", event.EventType)
}
