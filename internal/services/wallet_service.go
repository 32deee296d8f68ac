package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/scribeworks/backend/internal/audit"
	"github.com/scribeworks/backend/internal/metrics"
	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/store"
)

// WalletService is the only writer of the ledger. The *Tx methods join a unit
// of work opened by the caller; the rest open their own.
type WalletService struct {
	store   store.Store
	ledger  *Ledger
	audit   *audit.Logger
	metrics metrics.Recorder
	log     logrus.FieldLogger
}

func NewWalletService(st store.Store, ledger *Ledger, auditLog *audit.Logger, rec metrics.Recorder, log logrus.FieldLogger) *WalletService {
	if rec == nil {
		rec = metrics.NewNoOpCollector()
	}
	return &WalletService{
		store:   st,
		ledger:  ledger,
		audit:   auditLog,
		metrics: rec,
		log:     log.WithField("component", "wallet"),
	}
}

// HoldTx takes a task deposit from the account for one lock cycle. A zero
// amount is a no-op.
func (w *WalletService) HoldTx(ctx context.Context, tx store.Tx, accountID string, amount decimal.Decimal, taskID int64, lockID string) (*models.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, nil
	}
	if _, err := tx.LockAccount(ctx, accountID); err != nil {
		return nil, notFoundOr(err, "account %s not found", accountID)
	}

	balance, err := w.ledger.Balance(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(amount) {
		return nil, insufficientFunds("balance %s does not cover the %s deposit", balance.StringFixed(2), amount.StringFixed(2))
	}

	return w.ledger.Append(ctx, tx, accountID, amount.Neg(), models.EntryDepositHold, entryRef{TaskID: taskID, LockID: lockID})
}

// SettleTx pays the reward and refunds the deposit for a decided submission.
// A repeated call for the same (taskID, submissionID) writes nothing.
func (w *WalletService) SettleTx(ctx context.Context, tx store.Tx, accountID string, reward, refund decimal.Decimal, taskID int64, submissionID, lockID string) ([]*models.LedgerEntry, error) {
	recorded, err := tx.RecordSettlement(ctx, &models.Settlement{
		TaskID:    taskID,
		Reference: submissionID,
		AccountID: accountID,
		Reward:    reward,
		Refund:    refund,
	})
	if err != nil {
		return nil, err
	}
	if !recorded {
		return nil, nil
	}

	ref := entryRef{TaskID: taskID, SubmissionID: submissionID, LockID: lockID}
	var entries []*models.LedgerEntry
	if refund.IsPositive() {
		entry, err := w.ledger.Append(ctx, tx, accountID, refund, models.EntryDepositRefund, ref)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if reward.IsPositive() {
		entry, err := w.ledger.Append(ctx, tx, accountID, reward, models.EntryRewardPayout, ref)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ReleaseTx refunds whatever is still held for an abandoned lock cycle.
// Idempotent per (taskID, lockID).
func (w *WalletService) ReleaseTx(ctx context.Context, tx store.Tx, accountID string, taskID int64, lockID string) ([]*models.LedgerEntry, error) {
	refund, err := w.ledger.OutstandingHold(ctx, tx, taskID, lockID)
	if err != nil {
		return nil, err
	}

	recorded, err := tx.RecordSettlement(ctx, &models.Settlement{
		TaskID:    taskID,
		Reference: lockID,
		AccountID: accountID,
		Reward:    decimal.Zero,
		Refund:    refund,
	})
	if err != nil || !recorded || !refund.IsPositive() {
		return nil, err
	}

	entry, err := w.ledger.Append(ctx, tx, accountID, refund, models.EntryDepositRefund, entryRef{TaskID: taskID, LockID: lockID})
	if err != nil {
		return nil, err
	}
	return []*models.LedgerEntry{entry}, nil
}

// CreditTx appends a positive entry of the given kind.
func (w *WalletService) CreditTx(ctx context.Context, tx store.Tx, accountID string, amount decimal.Decimal, kind models.EntryKind) (*models.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, nil
	}
	return w.ledger.Append(ctx, tx, accountID, amount, kind, entryRef{})
}

// Settle runs SettleTx in its own unit of work. It reports whether anything
// was written.
func (w *WalletService) Settle(ctx context.Context, accountID string, reward, refund decimal.Decimal, taskID int64, submissionID string) (bool, error) {
	if !ValidMoney(reward) || !ValidMoney(refund) {
		return false, validationError("settlement amounts must be non-negative with at most 2 decimals")
	}

	var entries []*models.LedgerEntry
	err := w.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.LockAccount(ctx, accountID); err != nil {
			return notFoundOr(err, "account %s not found", accountID)
		}
		lockID := ""
		if sub, err := tx.GetSubmission(ctx, submissionID); err == nil {
			lockID = sub.LockID
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		var err error
		entries, err = w.SettleTx(ctx, tx, accountID, reward, refund, taskID, submissionID, lockID)
		return err
	})
	if err != nil {
		return false, err
	}
	w.Record(entries...)
	return len(entries) > 0, nil
}

// Balance returns the ledger-derived balance of an account.
func (w *WalletService) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := w.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetAccount(ctx, accountID); err != nil {
			return notFoundOr(err, "account %s not found", accountID)
		}
		var err error
		balance, err = w.ledger.Balance(ctx, tx, accountID)
		return err
	})
	return balance, err
}

// Withdraw pays out amount from the account, never below zero.
func (w *WalletService) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal) (*models.LedgerEntry, decimal.Decimal, error) {
	if !amount.IsPositive() || !ValidMoney(amount) {
		return nil, decimal.Zero, validationError("withdrawal amount must be positive with at most 2 decimals")
	}

	var entry *models.LedgerEntry
	var balance decimal.Decimal
	err := w.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.LockAccount(ctx, accountID); err != nil {
			return notFoundOr(err, "account %s not found", accountID)
		}
		current, err := w.ledger.Balance(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if current.LessThan(amount) {
			return insufficientFunds("balance %s does not cover a %s withdrawal", current.StringFixed(2), amount.StringFixed(2))
		}
		entry, err = w.ledger.Append(ctx, tx, accountID, amount.Neg(), models.EntryWithdrawal, entryRef{})
		balance = current.Sub(amount)
		return err
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	w.Record(entry)
	w.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"amount":     amount.StringFixed(2),
	}).Info("[WALLET] withdrawal recorded")
	return entry, balance, nil
}

// Adjust applies an admin correction. Negative amounts are allowed as long as
// the balance stays non-negative.
func (w *WalletService) Adjust(ctx context.Context, accountID string, amount decimal.Decimal, adminID string) (*models.LedgerEntry, decimal.Decimal, error) {
	if amount.IsZero() || !ValidMoney(amount.Abs()) {
		return nil, decimal.Zero, validationError("adjustment must be non-zero with at most 2 decimals")
	}

	var entry *models.LedgerEntry
	var balance decimal.Decimal
	err := w.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.LockAccount(ctx, accountID); err != nil {
			return notFoundOr(err, "account %s not found", accountID)
		}
		current, err := w.ledger.Balance(ctx, tx, accountID)
		if err != nil {
			return err
		}
		balance = current.Add(amount)
		if balance.IsNegative() {
			return insufficientFunds("adjustment would leave a negative balance of %s", balance.StringFixed(2))
		}
		entry, err = w.ledger.Append(ctx, tx, accountID, amount, models.EntryAdjustment, entryRef{})
		return err
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	w.Record(entry)
	w.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"admin_id":   adminID,
		"amount":     amount.StringFixed(2),
	}).Info("[WALLET] balance adjusted")
	return entry, balance, nil
}

// Entries returns ledger history newest first. An empty accountID lists every
// account.
func (w *WalletService) Entries(ctx context.Context, accountID string) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	err := w.store.View(ctx, func(tx store.Tx) error {
		var err error
		entries, err = tx.ListLedgerEntries(ctx, store.LedgerFilter{AccountID: accountID})
		return err
	})
	return entries, err
}

// Record reports committed entries to the audit log and metrics.
func (w *WalletService) Record(entries ...*models.LedgerEntry) {
	for _, e := range entries {
		if e == nil {
			continue
		}
		w.audit.LogLedgerEntry(e)
		w.metrics.RecordLedgerEntry(string(e.Kind))
	}
}
