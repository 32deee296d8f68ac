package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector("test")
	require.NotNil(t, c)
	assert.NotNil(t, c.Registry())
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("test")

	c.RecordLock("PAID", nil)
	c.RecordLock("PAID", errors.New("conflict"))
	c.RecordLock("PAID", nil)
	c.RecordRelease("expiry")
	c.RecordSubmission("APPROVED")
	c.RecordLedgerEntry("DEPOSIT_HOLD")
	c.RecordLedgerEntry("DEPOSIT_HOLD")
	c.RecordSweep(3, 20*time.Millisecond)
	c.RecordScoring(150*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.locksTotal.WithLabelValues("PAID", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.locksTotal.WithLabelValues("PAID", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.releasesTotal.WithLabelValues("expiry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.submissionsTotal.WithLabelValues("APPROVED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ledgerEntries.WithLabelValues("DEPOSIT_HOLD")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.sweepReleased))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.scoringTotal.WithLabelValues("success")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.RecordSubmission("REJECTED")

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_submission_resolved_total{status="REJECTED"} 1`)
}

func TestNoOpCollector(t *testing.T) {
	var r Recorder = NewNoOpCollector()

	// Should not panic
	r.RecordLock("ASSESSMENT", nil)
	r.RecordRelease("cancel")
	r.RecordSubmission("APPROVED")
	r.RecordScoring(time.Second, errors.New("timeout"))
	r.RecordLedgerEntry("WITHDRAWAL")
	r.RecordSweep(0, time.Millisecond)
}
