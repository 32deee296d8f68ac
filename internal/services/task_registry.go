package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/scribeworks/backend/internal/audit"
	"github.com/scribeworks/backend/internal/metrics"
	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/store"
)

// Release reasons.
const (
	ReleaseCancel    = "cancel"
	ReleaseExpiry    = "expiry"
	ReleaseRejection = "rejection"
)

// CreateTaskRequest carries the fields an admin supplies for a new task.
type CreateTaskRequest struct {
	Kind              models.TaskKind `json:"kind" validate:"required,oneof=ASSESSMENT PAID"`
	Deposit           decimal.Decimal `json:"deposit_amount" validate:"money2dp"`
	Reward            decimal.Decimal `json:"reward_amount" validate:"money2dp"`
	TimeLimit         int             `json:"time_limit" validate:"required,gt=0"`
	ReferenceImageURL string          `json:"reference_image_url" validate:"omitempty,max=2048"`
	ReferenceText     string          `json:"reference_text" validate:"omitempty,max=100000"`
}

// TaskRegistry owns task records and the OPEN -> LOCKED -> COMPLETED state
// machine. Every lock cycle is tied to one deposit hold in the wallet.
type TaskRegistry struct {
	store     store.Store
	wallet    *WalletService
	validator *ValidationHelper
	events    Publisher
	audit     *audit.Logger
	metrics   metrics.Recorder
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewTaskRegistry(st store.Store, wallet *WalletService, vh *ValidationHelper, events Publisher, auditLog *audit.Logger, rec metrics.Recorder, log logrus.FieldLogger) *TaskRegistry {
	if events == nil {
		events = NopPublisher{}
	}
	if rec == nil {
		rec = metrics.NewNoOpCollector()
	}
	return &TaskRegistry{
		store:     st,
		wallet:    wallet,
		validator: vh,
		events:    events,
		audit:     auditLog,
		metrics:   rec,
		log:       log.WithField("component", "tasks"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *TaskRegistry) CreateTask(ctx context.Context, req CreateTaskRequest) (*models.Task, error) {
	if err := r.validator.ValidateStruct(&req); err != nil {
		return nil, fromValidator(err)
	}
	if req.Kind == models.TaskKindPaid && !req.Deposit.IsPositive() {
		return nil, &Error{
			Kind:    KindValidation,
			Message: "paid tasks require a deposit",
			Details: map[string]string{"Deposit": "Field Validation Failed on 'gt' tag"},
		}
	}

	task := &models.Task{
		Kind:      req.Kind,
		Deposit:   req.Deposit.Round(2),
		Reward:    req.Reward.Round(2),
		TimeLimit: req.TimeLimit,
		Reference: models.Reference{
			ImageURL: strings.TrimSpace(req.ReferenceImageURL),
			Text:     req.ReferenceText,
		},
		Status: models.TaskStatusOpen,
	}
	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateTask(ctx, task)
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"task_id": task.ID,
		"kind":    task.Kind,
		"deposit": task.Deposit.StringFixed(2),
		"reward":  task.Reward.StringFixed(2),
	}).Info("[TASK] created")
	return task, nil
}

func (r *TaskRegistry) ListTasks(ctx context.Context) ([]*models.Task, error) {
	var tasks []*models.Task
	err := r.store.View(ctx, func(tx store.Tx) error {
		var err error
		tasks, err = tx.ListTasks(ctx)
		return err
	})
	return tasks, err
}

func (r *TaskRegistry) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	var task *models.Task
	err := r.store.View(ctx, func(tx store.Tx) error {
		var err error
		task, err = tx.GetTask(ctx, id)
		return notFoundOr(err, "task %d not found", id)
	})
	return task, err
}

// LockTask moves an OPEN task to LOCKED for accountID and places the deposit
// hold in the same unit of work. Of several concurrent calls for one task
// exactly one succeeds; the rest get a Conflict.
func (r *TaskRegistry) LockTask(ctx context.Context, taskID int64, accountID string) (*models.Task, error) {
	var locked *models.Task
	var hold *models.LedgerEntry
	kind := "unknown"

	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		task, err := tx.LockTaskRow(ctx, taskID)
		if err != nil {
			return notFoundOr(err, "task %d not found", taskID)
		}
		kind = string(task.Kind)
		acct, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return notFoundOr(err, "account %s not found", accountID)
		}

		if task.Status != models.TaskStatusOpen {
			return conflictError("task %d is %s", taskID, task.Status)
		}
		if acct.Role == models.RoleTrainee && task.Kind == models.TaskKindPaid {
			return policyError("trainees can only take assessment tasks")
		}

		lockID := uuid.NewString()
		acquired, err := tx.AcquireTask(ctx, taskID, accountID, lockID, r.now())
		if err != nil {
			return err
		}
		if !acquired {
			return conflictError("task %d was taken by someone else", taskID)
		}

		hold, err = r.wallet.HoldTx(ctx, tx, accountID, task.Deposit, taskID, lockID)
		if err != nil {
			return err
		}

		locked, err = tx.GetTask(ctx, taskID)
		return err
	})

	r.metrics.RecordLock(kind, err)
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"task_id":    taskID,
			"account_id": accountID,
		}).Debug("[TASK] lock refused")
		return nil, err
	}

	r.wallet.Record(hold)
	r.audit.LogTaskTransition(locked, accountID, models.TaskStatusOpen, "lock")
	r.events.Publish(ctx, Event{Type: EventTaskLocked, AccountID: accountID, TaskID: taskID, Amount: locked.Deposit.StringFixed(2)})
	r.log.WithFields(logrus.Fields{
		"task_id":    taskID,
		"account_id": accountID,
		"lock_id":    *locked.LockID,
	}).Info("[TASK] locked")
	return locked, nil
}

// CompleteTaskTx marks a task LOCKED by accountID as COMPLETED. It is only
// used by the submission engine inside an approval unit of work.
func (r *TaskRegistry) CompleteTaskTx(ctx context.Context, tx store.Tx, taskID int64, accountID string) error {
	completed, err := tx.CompleteTask(ctx, taskID, accountID, r.now())
	if err != nil {
		return notFoundOr(err, "task %d not found", taskID)
	}
	if !completed {
		return conflictError("task %d is not locked by %s", taskID, accountID)
	}
	return nil
}

// releaseTx reopens a locked task and refunds its hold.
func (r *TaskRegistry) releaseTx(ctx context.Context, tx store.Tx, task *models.Task) ([]*models.LedgerEntry, error) {
	if task.HolderID == nil || task.LockID == nil {
		return nil, conflictError("task %d is not locked", task.ID)
	}
	holderID, lockID := *task.HolderID, *task.LockID

	released, err := tx.ReleaseTask(ctx, task.ID, holderID, lockID, r.now())
	if err != nil {
		return nil, err
	}
	if !released {
		return nil, conflictError("task %d lock changed", task.ID)
	}
	return r.wallet.ReleaseTx(ctx, tx, holderID, task.ID, lockID)
}

// pendingInCycle reports whether the task's current lock cycle has a
// submission awaiting a decision.
func pendingInCycle(ctx context.Context, tx store.Tx, task *models.Task) (bool, error) {
	if task.LockID == nil {
		return false, nil
	}
	_, err := tx.FindPendingSubmission(ctx, task.ID, *task.LockID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// CancelLock gives a task back before its time limit. The deposit is
// refunded, so an abandoned lock costs nothing.
func (r *TaskRegistry) CancelLock(ctx context.Context, taskID int64, accountID string) (*models.Task, error) {
	var reopened *models.Task
	var entries []*models.LedgerEntry

	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		task, err := tx.LockTaskRow(ctx, taskID)
		if err != nil {
			return notFoundOr(err, "task %d not found", taskID)
		}
		if !task.HeldBy(accountID) {
			return conflictError("task %d is not locked by you", taskID)
		}
		pending, err := pendingInCycle(ctx, tx, task)
		if err != nil {
			return err
		}
		if pending {
			return conflictError("task %d has a submission awaiting review", taskID)
		}

		if entries, err = r.releaseTx(ctx, tx, task); err != nil {
			return err
		}
		reopened, err = tx.GetTask(ctx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.afterRelease(ctx, reopened, accountID, ReleaseCancel, entries)
	return reopened, nil
}

// ReleaseExpiredLocks returns every lock whose time limit elapsed by now to
// OPEN. Each task is re-checked in its own unit of work, so a task that was
// submitted, cancelled or re-locked meanwhile is left alone. Tasks with a
// PENDING submission are left for moderation.
func (r *TaskRegistry) ReleaseExpiredLocks(ctx context.Context, now time.Time) (int, error) {
	var candidates []*models.Task
	err := r.store.View(ctx, func(tx store.Tx) error {
		var err error
		candidates, err = tx.ListExpiredLocks(ctx, now)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list expired locks: %w", err)
	}

	released := 0
	var errs []error
	for _, candidate := range candidates {
		if candidate.LockID == nil || candidate.HolderID == nil {
			continue
		}
		lockID, holderID := *candidate.LockID, *candidate.HolderID

		var entries []*models.LedgerEntry
		var reopened *models.Task
		err := r.store.WithTx(ctx, func(tx store.Tx) error {
			task, err := tx.LockTaskRow(ctx, candidate.ID)
			if err != nil {
				return err
			}
			expiresAt, locked := task.LockExpiresAt()
			if !locked || task.LockID == nil || *task.LockID != lockID || expiresAt.After(now) {
				return nil
			}
			pending, err := pendingInCycle(ctx, tx, task)
			if err != nil || pending {
				return err
			}

			if entries, err = r.releaseTx(ctx, tx, task); err != nil {
				return err
			}
			reopened, err = tx.GetTask(ctx, task.ID)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("task %d: %w", candidate.ID, err))
			continue
		}
		if reopened == nil {
			continue
		}

		released++
		r.afterRelease(ctx, reopened, holderID, ReleaseExpiry, entries)
	}

	return released, errors.Join(errs...)
}

func (r *TaskRegistry) afterRelease(ctx context.Context, task *models.Task, holderID, reason string, entries []*models.LedgerEntry) {
	r.wallet.Record(entries...)
	r.metrics.RecordRelease(reason)
	r.audit.LogTaskTransition(task, holderID, models.TaskStatusLocked, reason)

	refund := decimal.Zero
	for _, e := range entries {
		refund = refund.Add(e.Amount)
	}
	r.events.Publish(ctx, Event{
		Type:      EventTaskReleased,
		AccountID: holderID,
		TaskID:    task.ID,
		Amount:    refund.StringFixed(2),
		Reason:    reason,
	})
	r.log.WithFields(logrus.Fields{
		"task_id":    task.ID,
		"account_id": holderID,
		"reason":     reason,
	}).Info("[TASK] released")
}
