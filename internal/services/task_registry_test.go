package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/backend/internal/models"
)

func TestTaskRegistry_CreateTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("valid paid task", func(t *testing.T) {
		task, err := f.registry.CreateTask(ctx, CreateTaskRequest{
			Kind:              models.TaskKindPaid,
			Deposit:           decimal.RequireFromString("5.00"),
			Reward:            decimal.RequireFromString("10.00"),
			TimeLimit:         60,
			ReferenceImageURL: " https://cdn.example.com/page-1.png ",
		})
		require.NoError(t, err)
		assert.NotZero(t, task.ID)
		assert.Equal(t, models.TaskStatusOpen, task.Status)
		assert.Nil(t, task.HolderID)
		assert.Equal(t, "https://cdn.example.com/page-1.png", task.Reference.ImageURL)
	})

	tests := []struct {
		name  string
		req   CreateTaskRequest
		field string
	}{
		{"unknown kind", CreateTaskRequest{Kind: "BONUS", TimeLimit: 5}, "Kind"},
		{"zero time limit", CreateTaskRequest{Kind: models.TaskKindAssessment}, "TimeLimit"},
		{"negative reward", CreateTaskRequest{Kind: models.TaskKindAssessment, TimeLimit: 5, Reward: decimal.RequireFromString("-1")}, "Reward"},
		{"three decimals", CreateTaskRequest{Kind: models.TaskKindAssessment, TimeLimit: 5, Deposit: decimal.RequireFromString("1.005")}, "Deposit"},
		{"paid without deposit", CreateTaskRequest{Kind: models.TaskKindPaid, TimeLimit: 5, Reward: decimal.RequireFromString("1")}, "Deposit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.registry.CreateTask(ctx, tt.req)
			require.ErrorIs(t, err, ErrValidation)

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Contains(t, e.Details, tt.field)
		})
	}
}

func TestTaskRegistry_ListAndGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.task(t, models.TaskKindAssessment, "0", "0")
	second := f.task(t, models.TaskKindPaid, "1.00", "2.00")

	tasks, err := f.registry.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, first.ID, tasks[0].ID)
	assert.Equal(t, second.ID, tasks[1].ID)

	got, err := f.registry.GetTask(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.00", got.Deposit.StringFixed(2))

	_, err = f.registry.GetTask(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRegistry_LockTask(t *testing.T) {
	ctx := context.Background()

	t.Run("records holder, lock id and hold", func(t *testing.T) {
		f := newFixture(t)
		writer := f.account(t, models.RoleWriter, "5.00")
		task := f.task(t, models.TaskKindPaid, "5.00", "10.00")

		locked, err := f.registry.LockTask(ctx, task.ID, writer)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusLocked, locked.Status)
		require.NotNil(t, locked.HolderID)
		assert.Equal(t, writer, *locked.HolderID)
		assert.NotNil(t, locked.LockID)
		assert.NotNil(t, locked.LockedAt)

		assert.Equal(t, "0.00", f.balance(t, writer))
		holds := f.entries(t, writer, models.EntryDepositHold)
		require.Len(t, holds, 1)
		assert.Equal(t, *locked.LockID, *holds[0].LockID)
		assert.Contains(t, f.events.types(), EventTaskLocked)
	})

	t.Run("trainee cannot lock paid task", func(t *testing.T) {
		f := newFixture(t)
		trainee := f.account(t, models.RoleTrainee, "100.00")
		task := f.task(t, models.TaskKindPaid, "5.00", "10.00")

		_, err := f.registry.LockTask(ctx, task.ID, trainee)
		assert.ErrorIs(t, err, ErrPolicy)
		assert.Equal(t, models.TaskStatusOpen, f.getTask(t, task.ID).Status)
		assert.Equal(t, "100.00", f.balance(t, trainee))
	})

	t.Run("trainee locking a taken paid task gets a conflict", func(t *testing.T) {
		f := newFixture(t)
		writer := f.account(t, models.RoleWriter, "5.00")
		trainee := f.account(t, models.RoleTrainee, "100.00")
		task := f.task(t, models.TaskKindPaid, "5.00", "10.00")
		_, err := f.registry.LockTask(ctx, task.ID, writer)
		require.NoError(t, err)

		_, err = f.registry.LockTask(ctx, task.ID, trainee)
		assert.ErrorIs(t, err, ErrConflict)
		assert.NotErrorIs(t, err, ErrPolicy)
	})

	t.Run("trainee can lock assessment", func(t *testing.T) {
		f := newFixture(t)
		trainee := f.account(t, models.RoleTrainee, "0")
		task := f.task(t, models.TaskKindAssessment, "0", "0")

		_, err := f.registry.LockTask(ctx, task.ID, trainee)
		assert.NoError(t, err)
	})

	t.Run("already locked", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, models.RoleWriter, "0")
		b := f.account(t, models.RoleWriter, "0")
		task := f.task(t, models.TaskKindAssessment, "0", "0")

		_, err := f.registry.LockTask(ctx, task.ID, a)
		require.NoError(t, err)
		_, err = f.registry.LockTask(ctx, task.ID, b)
		assert.ErrorIs(t, err, ErrConflict)
		_, err = f.registry.LockTask(ctx, task.ID, a)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("insufficient funds leaves task open", func(t *testing.T) {
		f := newFixture(t)
		writer := f.account(t, models.RoleWriter, "4.99")
		task := f.task(t, models.TaskKindPaid, "5.00", "10.00")

		_, err := f.registry.LockTask(ctx, task.ID, writer)
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		got := f.getTask(t, task.ID)
		assert.Equal(t, models.TaskStatusOpen, got.Status)
		assert.Nil(t, got.HolderID)
		assert.Nil(t, got.LockID)
		assert.Equal(t, "4.99", f.balance(t, writer))
	})

	t.Run("unknown task or account", func(t *testing.T) {
		f := newFixture(t)
		writer := f.account(t, models.RoleWriter, "0")
		task := f.task(t, models.TaskKindAssessment, "0", "0")

		_, err := f.registry.LockTask(ctx, 404, writer)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = f.registry.LockTask(ctx, task.ID, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTaskRegistry_LockTask_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	task := f.task(t, models.TaskKindPaid, "5.00", "10.00")

	const workers = 32
	accounts := make([]string, workers)
	for i := range accounts {
		accounts[i] = f.account(t, models.RoleWriter, "5.00")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var successes, conflicts int
	start := make(chan struct{})
	for _, acct := range accounts {
		wg.Add(1)
		go func(acct string) {
			defer wg.Done()
			<-start
			_, err := f.registry.LockTask(ctx, task.ID, acct)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case KindOf(err) == KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(acct)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)

	holder := *f.getTask(t, task.ID).HolderID
	for _, acct := range accounts {
		if acct == holder {
			assert.Equal(t, "0.00", f.balance(t, acct))
		} else {
			assert.Equal(t, "5.00", f.balance(t, acct), "loser must not be charged")
		}
	}
}

func TestTaskRegistry_CancelLock(t *testing.T) {
	ctx := context.Background()

	t.Run("reopens and refunds", func(t *testing.T) {
		f := newFixture(t)
		writer := f.account(t, models.RoleWriter, "5.00")
		task := f.task(t, models.TaskKindPaid, "5.00", "10.00")
		_, err := f.registry.LockTask(ctx, task.ID, writer)
		require.NoError(t, err)

		reopened, err := f.registry.CancelLock(ctx, task.ID, writer)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusOpen, reopened.Status)
		assert.Nil(t, reopened.HolderID)
		assert.Equal(t, "5.00", f.balance(t, writer))
		assert.Contains(t, f.events.types(), EventTaskReleased)

		_, err = f.registry.CancelLock(ctx, task.ID, writer)
		assert.ErrorIs(t, err, ErrConflict)
		assert.Len(t, f.entries(t, writer, models.EntryDepositRefund), 1)
	})

	t.Run("only the holder may cancel", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, models.RoleWriter, "0")
		b := f.account(t, models.RoleWriter, "0")
		task := f.task(t, models.TaskKindAssessment, "0", "0")
		_, err := f.registry.LockTask(ctx, task.ID, a)
		require.NoError(t, err)

		_, err = f.registry.CancelLock(ctx, task.ID, b)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("refused while a submission is pending", func(t *testing.T) {
		f := newFixture(t, withScorer(blockingScorer{}), withScoringTimeout(10*time.Millisecond))
		writer := f.account(t, models.RoleWriter, "5.00")
		task := f.task(t, models.TaskKindPaid, "5.00", "10.00")
		_, err := f.registry.LockTask(ctx, task.ID, writer)
		require.NoError(t, err)
		_, err = f.engine.Submit(ctx, writer, SubmitRequest{TaskID: task.ID, Content: "draft"})
		require.ErrorIs(t, err, ErrAdapter)

		_, err = f.registry.CancelLock(ctx, task.ID, writer)
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestTaskRegistry_ReleaseExpiredLocks(t *testing.T) {
	ctx := context.Background()

	t.Run("releases only expired locks", func(t *testing.T) {
		f := newFixture(t)
		writer := f.account(t, models.RoleWriter, "10.00")
		expired := f.task(t, models.TaskKindPaid, "5.00", "10.00")
		fresh := f.task(t, models.TaskKindPaid, "5.00", "10.00")

		base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		f.registry.now = func() time.Time { return base }
		_, err := f.registry.LockTask(ctx, expired.ID, writer)
		require.NoError(t, err)
		f.registry.now = func() time.Time { return base.Add(20 * time.Minute) }
		_, err = f.registry.LockTask(ctx, fresh.ID, writer)
		require.NoError(t, err)
		assert.Equal(t, "0.00", f.balance(t, writer))

		released, err := f.registry.ReleaseExpiredLocks(ctx, base.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, released)

		assert.Equal(t, models.TaskStatusOpen, f.getTask(t, expired.ID).Status)
		assert.Equal(t, models.TaskStatusLocked, f.getTask(t, fresh.ID).Status)
		assert.Equal(t, "5.00", f.balance(t, writer))

		released, err = f.registry.ReleaseExpiredLocks(ctx, base.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Zero(t, released)
	})

	t.Run("leaves tasks with a pending submission", func(t *testing.T) {
		f := newFixture(t, withScorer(blockingScorer{}), withScoringTimeout(10*time.Millisecond))
		writer := f.account(t, models.RoleWriter, "5.00")
		task := f.task(t, models.TaskKindPaid, "5.00", "10.00")
		_, err := f.registry.LockTask(ctx, task.ID, writer)
		require.NoError(t, err)
		_, err = f.engine.Submit(ctx, writer, SubmitRequest{TaskID: task.ID, Content: "draft"})
		require.ErrorIs(t, err, ErrAdapter)

		released, err := f.registry.ReleaseExpiredLocks(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Zero(t, released)
		assert.Equal(t, models.TaskStatusLocked, f.getTask(t, task.ID).Status)
	})
}
