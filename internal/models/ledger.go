package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryKind string

const (
	EntryDepositHold    EntryKind = "DEPOSIT_HOLD"
	EntryRewardPayout   EntryKind = "REWARD_PAYOUT"
	EntryDepositRefund  EntryKind = "DEPOSIT_REFUND"
	EntryWithdrawal     EntryKind = "WITHDRAWAL"
	EntryPromotionBonus EntryKind = "PROMOTION_BONUS"
	EntryAdjustment     EntryKind = "ADJUSTMENT"
)

// LedgerEntry is an append-only balance change. Amount is signed: holds and
// withdrawals are negative.
type LedgerEntry struct {
	ID           string          `json:"id" db:"id"`
	AccountID    string          `json:"account_id" db:"account_id"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Kind         EntryKind       `json:"kind" db:"kind"`
	TaskID       *int64          `json:"task_id,omitempty" db:"task_id"`
	SubmissionID *string         `json:"submission_id,omitempty" db:"submission_id"`
	LockID       *string         `json:"lock_id,omitempty" db:"lock_id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Settlement records that the refund/payout for (TaskID, Reference) was
// written. Reference is a submission id, or a lock id when a lock is released
// without a decided submission.
type Settlement struct {
	TaskID    int64           `json:"task_id" db:"task_id"`
	Reference string          `json:"reference" db:"reference"`
	AccountID string          `json:"account_id" db:"account_id"`
	Reward    decimal.Decimal `json:"reward" db:"reward"`
	Refund    decimal.Decimal `json:"refund" db:"refund"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
