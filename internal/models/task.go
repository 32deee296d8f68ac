package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TaskKind string

const (
	TaskKindAssessment TaskKind = "ASSESSMENT"
	TaskKindPaid       TaskKind = "PAID"
)

type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "OPEN"
	TaskStatusLocked    TaskStatus = "LOCKED"
	TaskStatusCompleted TaskStatus = "COMPLETED"
)

// Reference is the material a submission is scored against.
type Reference struct {
	ImageURL string `json:"image_url,omitempty" db:"reference_image_url"`
	Text     string `json:"text,omitempty" db:"reference_text"`
}

// Task is a unit of transcription work. HolderID, LockID and LockedAt are set
// only while the task is LOCKED.
type Task struct {
	ID        int64           `json:"id" db:"id"`
	Kind      TaskKind        `json:"kind" db:"kind"`
	Deposit   decimal.Decimal `json:"deposit_amount" db:"deposit_amount"`
	Reward    decimal.Decimal `json:"reward_amount" db:"reward_amount"`
	TimeLimit int             `json:"time_limit" db:"time_limit"` // minutes
	Reference Reference       `json:"reference"`
	Status    TaskStatus      `json:"status" db:"status"`
	HolderID  *string         `json:"holder_id,omitempty" db:"holder_id"`
	LockID    *string         `json:"lock_id,omitempty" db:"lock_id"`
	LockedAt  *time.Time      `json:"locked_at,omitempty" db:"locked_at"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// LockExpiresAt returns when the current lock lapses. ok is false for tasks
// that are not locked.
func (t *Task) LockExpiresAt() (time.Time, bool) {
	if t.Status != TaskStatusLocked || t.LockedAt == nil {
		return time.Time{}, false
	}
	return t.LockedAt.Add(time.Duration(t.TimeLimit) * time.Minute), true
}

// HeldBy reports whether accountID currently holds the lock on t.
func (t *Task) HeldBy(accountID string) bool {
	return t.Status == TaskStatusLocked && t.HolderID != nil && *t.HolderID == accountID
}
