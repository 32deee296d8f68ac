package models

import "time"

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "PENDING"
	SubmissionApproved SubmissionStatus = "APPROVED"
	SubmissionRejected SubmissionStatus = "REJECTED"
)

// Terminal reports whether s can no longer change.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionApproved || s == SubmissionRejected
}

// ResolvedByScoring marks a submission decided by the score threshold rather
// than an admin.
const ResolvedByScoring = "SCORING"

// Submission is the work handed in for one lock cycle of a task.
type Submission struct {
	ID         string           `json:"id" db:"id"`
	TaskID     int64            `json:"task_id" db:"task_id"`
	AccountID  string           `json:"account_id" db:"account_id"`
	LockID     string           `json:"lock_id" db:"lock_id"`
	Content    string           `json:"typed_content" db:"content"`
	Score      *float64         `json:"ocr_match_score,omitempty" db:"score"`
	Status     SubmissionStatus `json:"status" db:"status"`
	ResolvedBy *string          `json:"resolved_by,omitempty" db:"resolved_by"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
}
