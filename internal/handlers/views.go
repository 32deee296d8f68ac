package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/services"
)

// Response bodies. Amounts are fixed two-decimal strings.

type TaskView struct {
	ID                int64             `json:"id" example:"42"`
	Kind              models.TaskKind   `json:"kind" example:"PAID"`
	DepositAmount     string            `json:"deposit_amount" example:"5.00"`
	RewardAmount      string            `json:"reward_amount" example:"10.00"`
	TimeLimit         int               `json:"time_limit" example:"30"`
	ReferenceImageURL string            `json:"reference_image_url,omitempty"`
	ReferenceText     string            `json:"reference_text,omitempty"`
	Status            models.TaskStatus `json:"status" example:"OPEN"`
	HolderID          *string           `json:"holder_id,omitempty"`
	LockID            *string           `json:"lock_id,omitempty"`
	LockedAt          *time.Time        `json:"locked_at,omitempty"`
	LockExpiresAt     *time.Time        `json:"lock_expires_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// taskView renders a task. The reference text is what scoring compares
// against, so it is only included for admins.
func taskView(t *models.Task, admin bool) TaskView {
	v := TaskView{
		ID:                t.ID,
		Kind:              t.Kind,
		DepositAmount:     money(t.Deposit),
		RewardAmount:      money(t.Reward),
		TimeLimit:         t.TimeLimit,
		ReferenceImageURL: t.Reference.ImageURL,
		Status:            t.Status,
		HolderID:          t.HolderID,
		LockID:            t.LockID,
		LockedAt:          t.LockedAt,
		CreatedAt:         t.CreatedAt,
	}
	if admin {
		v.ReferenceText = t.Reference.Text
	}
	if exp, ok := t.LockExpiresAt(); ok {
		v.LockExpiresAt = &exp
	}
	return v
}

func taskViews(tasks []*models.Task, admin bool) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskView(t, admin))
	}
	return out
}

type AccountView struct {
	ID          string      `json:"id"`
	PhoneNumber string      `json:"phone_number,omitempty"`
	DisplayName string      `json:"display_name"`
	Role        models.Role `json:"role" example:"TRAINEE"`
	Balance     string      `json:"balance" example:"15.00"`
	CreatedAt   time.Time   `json:"created_at"`
}

func accountView(a *models.Account) AccountView {
	return AccountView{
		ID:          a.ID,
		PhoneNumber: a.PhoneNumber,
		DisplayName: a.DisplayName,
		Role:        a.Role,
		Balance:     money(a.Balance),
		CreatedAt:   a.CreatedAt,
	}
}

type EntryView struct {
	ID           string           `json:"id"`
	AccountID    string           `json:"account_id"`
	Amount       string           `json:"amount" example:"-5.00"`
	Kind         models.EntryKind `json:"kind" example:"DEPOSIT_HOLD"`
	TaskID       *int64           `json:"task_id,omitempty"`
	SubmissionID *string          `json:"submission_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

func entryView(e *models.LedgerEntry) EntryView {
	return EntryView{
		ID:           e.ID,
		AccountID:    e.AccountID,
		Amount:       money(e.Amount),
		Kind:         e.Kind,
		TaskID:       e.TaskID,
		SubmissionID: e.SubmissionID,
		CreatedAt:    e.CreatedAt,
	}
}

func entryViews(entries []*models.LedgerEntry) []EntryView {
	out := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryView(e))
	}
	return out
}

// DecisionView is returned from submit and moderate. Balance is the
// submitter's ledger-derived balance after the decision.
type DecisionView struct {
	Submission *models.Submission `json:"submission"`
	Task       TaskView           `json:"task"`
	Role       models.Role        `json:"role"`
	Balance    string             `json:"balance"`
	Promoted   bool               `json:"promoted"`
}

func decisionView(d *services.Decision, admin bool) DecisionView {
	return DecisionView{
		Submission: d.Submission,
		Task:       taskView(d.Task, admin),
		Role:       d.Account.Role,
		Balance:    money(d.Account.Balance),
		Promoted:   d.Promoted,
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
