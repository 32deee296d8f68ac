package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/store"
)

func seed(t *testing.T, s *Store) *models.Task {
	t.Helper()
	task := &models.Task{
		Kind:      models.TaskKindPaid,
		Deposit:   decimal.RequireFromString("5.00"),
		Reward:    decimal.RequireFromString("10.00"),
		TimeLimit: 30,
		Status:    models.TaskStatusOpen,
	}
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateAccount(context.Background(), &models.Account{ID: "w1", Role: models.RoleWriter}); err != nil {
			return err
		}
		return tx.CreateTask(context.Background(), task)
	})
	require.NoError(t, err)
	return task
}

func TestWithTxRollsBackEveryWrite(t *testing.T) {
	ctx := context.Background()
	s := New()
	task := seed(t, s)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		ok, err := tx.AcquireTask(ctx, task.ID, "w1", "lock-1", time.Now())
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, tx.AppendLedgerEntry(ctx, &models.LedgerEntry{ID: "e1", AccountID: "w1", Amount: decimal.NewFromInt(-5), Kind: models.EntryDepositHold}))
		require.NoError(t, tx.CreateSubmission(ctx, &models.Submission{ID: "s1", TaskID: task.ID, AccountID: "w1", LockID: "lock-1", Status: models.SubmissionPending}))
		created, err := tx.RecordSettlement(ctx, &models.Settlement{TaskID: task.ID, Reference: "s1"})
		require.NoError(t, err)
		require.True(t, created)
		_, err = tx.SetAccountRole(ctx, "w1", models.RoleWriter, models.RoleAdmin)
		require.NoError(t, err)
		require.NoError(t, tx.CreateTask(ctx, &models.Task{Kind: models.TaskKindAssessment, TimeLimit: 1, Status: models.TaskStatusOpen}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.View(ctx, func(tx store.Tx) error {
		got, err := tx.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusOpen, got.Status)
		assert.Nil(t, got.HolderID)

		sum, err := tx.SumLedger(ctx, "w1")
		require.NoError(t, err)
		assert.True(t, sum.IsZero())

		_, err = tx.GetSubmission(ctx, "s1")
		assert.ErrorIs(t, err, store.ErrNotFound)

		acct, err := tx.GetAccount(ctx, "w1")
		require.NoError(t, err)
		assert.Equal(t, models.RoleWriter, acct.Role)

		tasks, err := tx.ListTasks(ctx)
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
		return nil
	})
	require.NoError(t, err)

	// Settlement keys and task ids are reusable after the rollback.
	err = s.WithTx(ctx, func(tx store.Tx) error {
		created, err := tx.RecordSettlement(ctx, &models.Settlement{TaskID: task.ID, Reference: "s1"})
		require.NoError(t, err)
		assert.True(t, created)

		next := &models.Task{Kind: models.TaskKindAssessment, TimeLimit: 1, Status: models.TaskStatusOpen}
		require.NoError(t, tx.CreateTask(ctx, next))
		assert.Equal(t, task.ID+1, next.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := New()
	task := seed(t, s)

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(tx store.Tx) error {
			_, _ = tx.AcquireTask(ctx, task.ID, "w1", "lock-1", time.Now())
			panic("halfway")
		})
	})

	err := s.View(ctx, func(tx store.Tx) error {
		got, err := tx.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusOpen, got.Status)
		return nil
	})
	require.NoError(t, err)
}

func TestViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := New()
	task := seed(t, s)

	err := s.View(ctx, func(tx store.Tx) error {
		_, err := tx.AcquireTask(ctx, task.ID, "w1", "lock-1", time.Now())
		return err
	})
	assert.ErrorIs(t, err, store.ErrReadOnly)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New()

	called := false
	err := s.WithTx(ctx, func(tx store.Tx) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestTaskTransitions(t *testing.T) {
	ctx := context.Background()
	s := New()
	task := seed(t, s)
	lockedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		ok, err := tx.AcquireTask(ctx, task.ID, "w1", "lock-1", lockedAt)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.AcquireTask(ctx, task.ID, "w2", "lock-2", lockedAt)
		require.NoError(t, err)
		assert.False(t, ok, "second acquire must fail")

		ok, err = tx.ReleaseTask(ctx, task.ID, "w1", "stale-lock", lockedAt)
		require.NoError(t, err)
		assert.False(t, ok, "release under another lock id")

		ok, err = tx.CompleteTask(ctx, task.ID, "w2", lockedAt)
		require.NoError(t, err)
		assert.False(t, ok, "complete by non-holder")

		expired, err := tx.ListExpiredLocks(ctx, lockedAt.Add(29*time.Minute))
		require.NoError(t, err)
		assert.Empty(t, expired)

		expired, err = tx.ListExpiredLocks(ctx, lockedAt.Add(30*time.Minute))
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, "lock-1", *expired[0].LockID)

		ok, err = tx.ReleaseTask(ctx, task.ID, "w1", "lock-1", lockedAt)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := tx.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusOpen, got.Status)
		assert.Nil(t, got.LockID)
		assert.Nil(t, got.LockedAt)
		return nil
	})
	require.NoError(t, err)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	task := seed(t, s)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.AcquireTask(ctx, task.ID, "w1", "lock-1", time.Now())
		return err
	})
	require.NoError(t, err)

	err = s.View(ctx, func(tx store.Tx) error {
		got, err := tx.GetTask(ctx, task.ID)
		require.NoError(t, err)
		*got.HolderID = "intruder"

		again, err := tx.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "w1", *again.HolderID)
		return nil
	})
	require.NoError(t, err)
}

func TestSubmissionQueries(t *testing.T) {
	ctx := context.Background()
	s := New()
	task := seed(t, s)
	assessment := &models.Task{Kind: models.TaskKindAssessment, TimeLimit: 10, Status: models.TaskStatusOpen}

	score := 0.9
	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.CreateTask(ctx, assessment))
		for _, sub := range []*models.Submission{
			{ID: "a", TaskID: assessment.ID, AccountID: "w1", LockID: "l1", Status: models.SubmissionPending},
			{ID: "b", TaskID: task.ID, AccountID: "w1", LockID: "l2", Status: models.SubmissionPending},
			{ID: "c", TaskID: assessment.ID, AccountID: "w2", LockID: "l3", Status: models.SubmissionPending},
		} {
			require.NoError(t, tx.CreateSubmission(ctx, sub))
		}

		ok, err := tx.ResolveSubmission(ctx, "a", models.SubmissionApproved, &score, models.ResolvedByScoring, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = tx.ResolveSubmission(ctx, "a", models.SubmissionRejected, nil, "admin", time.Now())
		require.NoError(t, err)
		assert.False(t, ok, "already resolved")

		_, err = tx.ResolveSubmission(ctx, "b", models.SubmissionApproved, nil, "admin", time.Now())
		return err
	})
	require.NoError(t, err)

	err = s.View(ctx, func(tx store.Tx) error {
		n, err := tx.CountApproved(ctx, "w1", models.TaskKindAssessment)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		mine, err := tx.ListSubmissions(ctx, store.SubmissionFilter{AccountID: "w1"})
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, "b", mine[0].ID, "newest first")

		pending, err := tx.ListSubmissions(ctx, store.SubmissionFilter{Status: models.SubmissionPending})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "c", pending[0].ID)

		found, err := tx.FindPendingSubmission(ctx, assessment.ID, "l3")
		require.NoError(t, err)
		assert.Equal(t, "c", found.ID)

		_, err = tx.FindPendingSubmission(ctx, assessment.ID, "l1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}
