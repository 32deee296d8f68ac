package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/store"
)

// Ledger appends balance-affecting entries and derives balances from them.
// It only ever runs inside a unit of work opened by the caller.
type Ledger struct {
	now func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{now: func() time.Time { return time.Now().UTC() }}
}

// entryRef links an entry to the task, submission and lock cycle it settles.
type entryRef struct {
	TaskID       int64
	SubmissionID string
	LockID       string
}

func (l *Ledger) Append(ctx context.Context, tx store.Tx, accountID string, amount decimal.Decimal, kind models.EntryKind, ref entryRef) (*models.LedgerEntry, error) {
	entry := &models.LedgerEntry{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Amount:    amount.Round(2),
		Kind:      kind,
		CreatedAt: l.now(),
	}
	if ref.TaskID != 0 {
		taskID := ref.TaskID
		entry.TaskID = &taskID
	}
	if ref.SubmissionID != "" {
		subID := ref.SubmissionID
		entry.SubmissionID = &subID
	}
	if ref.LockID != "" {
		lockID := ref.LockID
		entry.LockID = &lockID
	}

	if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("append %s entry: %w", kind, err)
	}
	return entry, nil
}

func (l *Ledger) Balance(ctx context.Context, tx store.Tx, accountID string) (decimal.Decimal, error) {
	sum, err := tx.SumLedger(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum ledger: %w", err)
	}
	return sum.Round(2), nil
}

// OutstandingHold is the part of a lock cycle's deposit hold that has not
// been refunded yet.
func (l *Ledger) OutstandingHold(ctx context.Context, tx store.Tx, taskID int64, lockID string) (decimal.Decimal, error) {
	entries, err := tx.ListLedgerEntries(ctx, store.LedgerFilter{TaskID: taskID, LockID: lockID})
	if err != nil {
		return decimal.Zero, fmt.Errorf("list lock entries: %w", err)
	}
	outstanding := decimal.Zero
	for _, e := range entries {
		switch e.Kind {
		case models.EntryDepositHold, models.EntryDepositRefund:
			outstanding = outstanding.Sub(e.Amount)
		}
	}
	if outstanding.IsNegative() {
		return decimal.Zero, nil
	}
	return outstanding, nil
}
