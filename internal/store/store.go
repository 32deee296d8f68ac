// Package store defines the transactional persistence contract shared by the
// PostgreSQL and in-memory backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scribeworks/backend/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrReadOnly is returned when a write is attempted inside View.
var ErrReadOnly = errors.New("write attempted in read-only transaction")

// ErrContention is returned when the database aborted a unit of work because
// of a deadlock or serialization failure. Repeating it may succeed.
var ErrContention = errors.New("transaction aborted by concurrent update")

// Store runs units of work. Everything done through the Tx passed to fn is
// committed together when fn returns nil and rolled back otherwise.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside a unit of work. Methods named
// Lock* take a row lock held until the unit of work ends.
type Tx interface {
	AccountStore
	TaskStore
	SubmissionStore
	LedgerStore
}

type AccountStore interface {
	CreateAccount(ctx context.Context, acct *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	LockAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	// SetAccountRole changes the role only if it currently equals from.
	SetAccountRole(ctx context.Context, id string, from, to models.Role) (bool, error)
	SetDisplayName(ctx context.Context, id, name string) error
}

type TaskStore interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	LockTaskRow(ctx context.Context, id int64) (*models.Task, error)
	ListTasks(ctx context.Context) ([]*models.Task, error)
	// AcquireTask moves an OPEN task to LOCKED for holderID. It reports false
	// when the task was not OPEN.
	AcquireTask(ctx context.Context, id int64, holderID, lockID string, at time.Time) (bool, error)
	// CompleteTask moves a task LOCKED by holderID to COMPLETED.
	CompleteTask(ctx context.Context, id int64, holderID string, at time.Time) (bool, error)
	// ReleaseTask moves a task LOCKED by holderID under lockID back to OPEN.
	ReleaseTask(ctx context.Context, id int64, holderID, lockID string, at time.Time) (bool, error)
	// ListExpiredLocks returns LOCKED tasks whose time limit elapsed by now.
	ListExpiredLocks(ctx context.Context, now time.Time) ([]*models.Task, error)
}

// SubmissionFilter narrows ListSubmissions. Zero values match everything.
type SubmissionFilter struct {
	AccountID string
	Status    models.SubmissionStatus
}

type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub *models.Submission) error
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	LockSubmission(ctx context.Context, id string) (*models.Submission, error)
	// FindPendingSubmission returns the PENDING submission of a lock cycle.
	FindPendingSubmission(ctx context.Context, taskID int64, lockID string) (*models.Submission, error)
	UpdateSubmissionContent(ctx context.Context, id, content string) error
	// ResolveSubmission sets a terminal status on a PENDING submission and
	// reports false when it was no longer PENDING.
	ResolveSubmission(ctx context.Context, id string, status models.SubmissionStatus, score *float64, resolvedBy string, at time.Time) (bool, error)
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]*models.Submission, error)
	CountApproved(ctx context.Context, accountID string, kind models.TaskKind) (int, error)
}

// LedgerFilter narrows ListLedgerEntries. Zero values match everything.
type LedgerFilter struct {
	AccountID string
	TaskID    int64
	LockID    string
}

type LedgerStore interface {
	AppendLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	SumLedger(ctx context.Context, accountID string) (decimal.Decimal, error)
	ListLedgerEntries(ctx context.Context, filter LedgerFilter) ([]*models.LedgerEntry, error)
	// RecordSettlement stores the idempotency record and reports false when
	// one already exists for (TaskID, Reference).
	RecordSettlement(ctx context.Context, s *models.Settlement) (bool, error)
}
