package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/scribeworks/backend/internal/audit"
	"github.com/scribeworks/backend/internal/metrics"
	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/scoring"
	"github.com/scribeworks/backend/internal/store"
)

// EngineSettings are the decision knobs of the submission engine.
type EngineSettings struct {
	ApprovalThreshold float64
	ScoringTimeout    time.Duration
}

// SubmitRequest is the payload of a submission.
type SubmitRequest struct {
	TaskID  int64  `json:"task" validate:"required,gt=0"`
	Content string `json:"typed_content" validate:"required,max=200000"`
}

// ModerateRequest is an admin decision on a PENDING submission.
type ModerateRequest struct {
	Status models.SubmissionStatus `json:"status" validate:"required"`
}

// Decision is the result of resolving a submission.
type Decision struct {
	Submission *models.Submission
	Task       *models.Task
	// Account is the refreshed submitter, with Balance derived from the ledger.
	Account  *models.Account
	Promoted bool
}

// SubmissionEngine takes typed work for a locked task, scores it and settles
// the outcome. The automatic decision and admin moderation share transition.
type SubmissionEngine struct {
	store     store.Store
	registry  *TaskRegistry
	wallet    *WalletService
	ledger    *Ledger
	promotion *PromotionRule
	scorer    scoring.Adapter
	settings  EngineSettings
	validator *ValidationHelper
	events    Publisher
	audit     *audit.Logger
	metrics   metrics.Recorder
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewSubmissionEngine(
	st store.Store,
	registry *TaskRegistry,
	wallet *WalletService,
	ledger *Ledger,
	promotion *PromotionRule,
	scorer scoring.Adapter,
	settings EngineSettings,
	vh *ValidationHelper,
	events Publisher,
	auditLog *audit.Logger,
	rec metrics.Recorder,
	log logrus.FieldLogger,
) *SubmissionEngine {
	if events == nil {
		events = NopPublisher{}
	}
	if rec == nil {
		rec = metrics.NewNoOpCollector()
	}
	if settings.ScoringTimeout <= 0 {
		settings.ScoringTimeout = 10 * time.Second
	}
	return &SubmissionEngine{
		store:     st,
		registry:  registry,
		wallet:    wallet,
		ledger:    ledger,
		promotion: promotion,
		scorer:    scorer,
		settings:  settings,
		validator: vh,
		events:    events,
		audit:     auditLog,
		metrics:   rec,
		log:       log.WithField("component", "submissions"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit records content for the caller's current lock on taskID, scores it
// and applies the decision. When scoring fails the submission stays PENDING,
// the task stays LOCKED and an Adapter error is returned; submitting again
// retries with the same submission.
func (e *SubmissionEngine) Submit(ctx context.Context, accountID string, req SubmitRequest) (*Decision, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := e.validator.ValidateStruct(&req); err != nil {
		return nil, fromValidator(err)
	}

	var sub *models.Submission
	var ref models.Reference
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		// A pending submission is locked before its task, the same order
		// transition uses.
		snapshot, err := tx.GetTask(ctx, req.TaskID)
		if err != nil {
			return notFoundOr(err, "task %d not found", req.TaskID)
		}
		if !snapshot.HeldBy(accountID) || snapshot.LockID == nil {
			return conflictError("task %d is not locked by you", req.TaskID)
		}
		lockID := *snapshot.LockID

		existing, err := tx.FindPendingSubmission(ctx, snapshot.ID, lockID)
		switch {
		case err == nil:
			if existing, err = tx.LockSubmission(ctx, existing.ID); err != nil {
				return err
			}
			if existing.Status != models.SubmissionPending {
				return conflictError("submission %s is already %s", existing.ID, existing.Status)
			}
		case errors.Is(err, store.ErrNotFound):
			existing = nil
		default:
			return err
		}

		task, err := tx.LockTaskRow(ctx, req.TaskID)
		if err != nil {
			return notFoundOr(err, "task %d not found", req.TaskID)
		}
		if !task.HeldBy(accountID) || task.LockID == nil || *task.LockID != lockID {
			return conflictError("task %d is not locked by you", req.TaskID)
		}
		ref = task.Reference

		if existing != nil {
			if err := tx.UpdateSubmissionContent(ctx, existing.ID, req.Content); err != nil {
				return err
			}
			existing.Content = req.Content
			sub = existing
			return nil
		}

		// Another submit for this lock cycle created its row between the
		// snapshot and the task lock.
		if _, err := tx.FindPendingSubmission(ctx, task.ID, lockID); err == nil {
			return conflictError("a submission for task %d is already in progress", task.ID)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		sub = &models.Submission{
			ID:        uuid.NewString(),
			TaskID:    task.ID,
			AccountID: accountID,
			LockID:    lockID,
			Content:   req.Content,
			Status:    models.SubmissionPending,
			CreatedAt: e.now(),
		}
		return tx.CreateSubmission(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	score, err := e.score(ctx, sub.Content, ref)
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"submission_id": sub.ID,
			"task_id":       sub.TaskID,
		}).Warn("[SUBMISSION] scoring failed, left pending")
		return nil, adapterError(err)
	}

	status := models.SubmissionRejected
	if score >= e.settings.ApprovalThreshold {
		status = models.SubmissionApproved
	}
	return e.transition(ctx, sub.ID, status, &score, &sub.Content, models.ResolvedByScoring)
}

func (e *SubmissionEngine) score(ctx context.Context, content string, ref models.Reference) (float64, error) {
	scoreCtx, cancel := context.WithTimeout(ctx, e.settings.ScoringTimeout)
	defer cancel()

	start := time.Now()
	score, err := e.scorer.Score(scoreCtx, content, ref)
	if err == nil && (score < 0 || score > 1 || math.IsNaN(score)) {
		err = scoring.ErrUnavailable
	}
	e.metrics.RecordScoring(time.Since(start), err)
	return score, err
}

// Moderate applies an admin decision to a PENDING submission.
func (e *SubmissionEngine) Moderate(ctx context.Context, submissionID string, status models.SubmissionStatus, adminID string) (*Decision, error) {
	if !status.Terminal() {
		return nil, &Error{
			Kind:    KindValidation,
			Message: "status must be APPROVED or REJECTED",
			Details: map[string]string{"Status": "Field Validation Failed on 'oneof' tag"},
		}
	}

	err := e.store.View(ctx, func(tx store.Tx) error {
		admin, err := tx.GetAccount(ctx, adminID)
		if err != nil {
			return notFoundOr(err, "account %s not found", adminID)
		}
		if admin.Role != models.RoleAdmin {
			return policyError("only admins can moderate submissions")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return e.transition(ctx, submissionID, status, nil, nil, adminID)
}

// transition resolves a PENDING submission and settles it in one unit of
// work. Rows are locked submission, task, account. On APPROVED the task is
// completed, the held deposit refunded, the reward paid and promotion
// evaluated; on REJECTED the task reopens and the deposit is refunded. Any
// failure rolls everything back and leaves the submission PENDING.
// scored, when set, is the content the score was computed for; the decision
// is refused if the submission was resubmitted in the meantime.
func (e *SubmissionEngine) transition(ctx context.Context, submissionID string, status models.SubmissionStatus, score *float64, scored *string, resolvedBy string) (*Decision, error) {
	var decision Decision
	var entries []*models.LedgerEntry
	var promotion *Promotion
	var fromRole models.Role

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		sub, err := tx.LockSubmission(ctx, submissionID)
		if err != nil {
			return notFoundOr(err, "submission %s not found", submissionID)
		}
		if sub.Status != models.SubmissionPending {
			return conflictError("submission %s is already %s", submissionID, sub.Status)
		}
		if scored != nil && sub.Content != *scored {
			return conflictError("submission %s was resubmitted while being scored", submissionID)
		}
		task, err := tx.LockTaskRow(ctx, sub.TaskID)
		if err != nil {
			return notFoundOr(err, "task %d not found", sub.TaskID)
		}
		acct, err := tx.LockAccount(ctx, sub.AccountID)
		if err != nil {
			return notFoundOr(err, "account %s not found", sub.AccountID)
		}
		fromRole = acct.Role

		if !task.HeldBy(sub.AccountID) || task.LockID == nil || *task.LockID != sub.LockID {
			return conflictError("task %d is no longer locked for submission %s", task.ID, submissionID)
		}

		resolved, err := tx.ResolveSubmission(ctx, submissionID, status, score, resolvedBy, e.now())
		if err != nil {
			return err
		}
		if !resolved {
			return conflictError("submission %s was resolved concurrently", submissionID)
		}

		refund, err := e.ledger.OutstandingHold(ctx, tx, task.ID, sub.LockID)
		if err != nil {
			return err
		}

		switch status {
		case models.SubmissionApproved:
			if err := e.registry.CompleteTaskTx(ctx, tx, task.ID, sub.AccountID); err != nil {
				return err
			}
			if entries, err = e.wallet.SettleTx(ctx, tx, sub.AccountID, task.Reward, refund, task.ID, sub.ID, sub.LockID); err != nil {
				return err
			}
			if promotion, err = e.promotion.EvaluateTx(ctx, tx, sub.AccountID); err != nil {
				return err
			}
			if promotion != nil && promotion.Bonus != nil {
				entries = append(entries, promotion.Bonus)
			}
		default:
			released, err := tx.ReleaseTask(ctx, task.ID, sub.AccountID, sub.LockID, e.now())
			if err != nil {
				return err
			}
			if !released {
				return conflictError("task %d lock changed", task.ID)
			}
			if entries, err = e.wallet.SettleTx(ctx, tx, sub.AccountID, decimal.Zero, refund, task.ID, sub.ID, sub.LockID); err != nil {
				return err
			}
		}

		if decision.Submission, err = tx.GetSubmission(ctx, submissionID); err != nil {
			return err
		}
		if decision.Task, err = tx.GetTask(ctx, task.ID); err != nil {
			return err
		}
		if decision.Account, err = tx.GetAccount(ctx, sub.AccountID); err != nil {
			return err
		}
		decision.Account.Balance, err = e.ledger.Balance(ctx, tx, sub.AccountID)
		return err
	})
	if err != nil {
		return nil, err
	}

	decision.Promoted = promotion != nil
	e.afterTransition(ctx, &decision, fromRole, entries)
	return &decision, nil
}

func (e *SubmissionEngine) afterTransition(ctx context.Context, d *Decision, fromRole models.Role, entries []*models.LedgerEntry) {
	sub := d.Submission

	e.wallet.Record(entries...)
	e.metrics.RecordSubmission(string(sub.Status))
	e.audit.LogSubmissionResolved(sub)

	eventType := EventSubmissionApproved
	if sub.Status == models.SubmissionRejected {
		eventType = EventSubmissionRejected
		e.metrics.RecordRelease(ReleaseRejection)
		e.audit.LogTaskTransition(d.Task, sub.AccountID, models.TaskStatusLocked, ReleaseRejection)
	} else {
		e.audit.LogTaskTransition(d.Task, sub.AccountID, models.TaskStatusLocked, "approval")
	}

	credited := decimal.Zero
	for _, entry := range entries {
		credited = credited.Add(entry.Amount)
	}
	e.events.Publish(ctx, Event{
		Type:         eventType,
		AccountID:    sub.AccountID,
		TaskID:       sub.TaskID,
		SubmissionID: sub.ID,
		Amount:       credited.StringFixed(2),
	})

	if d.Promoted {
		e.audit.LogRoleChange(sub.AccountID, fromRole, d.Account.Role, "promotion")
		e.events.Publish(ctx, Event{Type: EventAccountPromoted, AccountID: sub.AccountID})
	}

	fields := logrus.Fields{
		"submission_id": sub.ID,
		"task_id":       sub.TaskID,
		"account_id":    sub.AccountID,
		"status":        sub.Status,
		"promoted":      d.Promoted,
	}
	if sub.Score != nil {
		fields["score"] = *sub.Score
	}
	if sub.ResolvedBy != nil {
		fields["resolved_by"] = *sub.ResolvedBy
	}
	e.log.WithFields(fields).Info("[SUBMISSION] resolved")
}

// ListSubmissions returns the caller's submissions, or every submission when
// all is set, newest first.
func (e *SubmissionEngine) ListSubmissions(ctx context.Context, accountID string, all bool, status models.SubmissionStatus) ([]*models.Submission, error) {
	filter := store.SubmissionFilter{Status: status}
	if !all {
		filter.AccountID = accountID
	}
	var subs []*models.Submission
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		subs, err = tx.ListSubmissions(ctx, filter)
		return err
	})
	return subs, err
}

// GetSubmission returns a submission visible to the caller: their own, or any
// for an admin.
func (e *SubmissionEngine) GetSubmission(ctx context.Context, id, accountID string, isAdmin bool) (*models.Submission, error) {
	var sub *models.Submission
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		sub, err = tx.GetSubmission(ctx, id)
		return notFoundOr(err, "submission %s not found", id)
	})
	if err != nil {
		return nil, err
	}
	if !isAdmin && sub.AccountID != accountID {
		return nil, policyError("submission %s belongs to another account", id)
	}
	return sub, nil
}
