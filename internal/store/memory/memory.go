// Package memory is an in-memory implementation of store.Store. Units of work
// are serialised behind a single writer lock and rolled back with an undo log,
// so it gives the same atomicity guarantees as the PostgreSQL backend. It is
// intended for tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/store"
)

type Store struct {
	mu          sync.RWMutex
	nextTaskID  int64
	accounts    map[string]models.Account
	tasks       map[int64]models.Task
	submissions map[string]models.Submission
	subOrder    []string
	ledger      []models.LedgerEntry
	balances    map[string]decimal.Decimal
	settlements map[string]models.Settlement
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextTaskID:  1,
		accounts:    make(map[string]models.Account),
		tasks:       make(map[int64]models.Task),
		submissions: make(map[string]models.Submission),
		balances:    make(map[string]decimal.Decimal),
		settlements: make(map[string]models.Settlement),
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txn{s: s}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
	}()
	if err = fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&txn{s: s, readOnly: true})
}

// txn is a unit of work against Store. The owning Store lock is held for its
// whole lifetime.
type txn struct {
	s        *Store
	readOnly bool
	undo     []func()
}

var _ store.Tx = (*txn)(nil)

func (t *txn) write() error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	return nil
}

func (t *txn) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *txn) saveAccount(id string) {
	prev, ok := t.s.accounts[id]
	t.undo = append(t.undo, func() {
		if ok {
			t.s.accounts[id] = prev
		} else {
			delete(t.s.accounts, id)
		}
	})
}

func (t *txn) saveTask(id int64) {
	prev, ok := t.s.tasks[id]
	t.undo = append(t.undo, func() {
		if ok {
			t.s.tasks[id] = prev
		} else {
			delete(t.s.tasks, id)
		}
	})
}

func (t *txn) saveSubmission(id string) {
	prev, ok := t.s.submissions[id]
	t.undo = append(t.undo, func() {
		if ok {
			t.s.submissions[id] = prev
		} else {
			delete(t.s.submissions, id)
		}
	})
}

// Accounts ---------------------------------------------------------------------

func (t *txn) CreateAccount(_ context.Context, acct *models.Account) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, exists := t.s.accounts[acct.ID]; exists {
		return fmt.Errorf("account %s already exists", acct.ID)
	}
	now := time.Now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now
	t.saveAccount(acct.ID)
	t.s.accounts[acct.ID] = *acct
	return nil
}

func (t *txn) GetAccount(_ context.Context, id string) (*models.Account, error) {
	acct, ok := t.s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &acct, nil
}

func (t *txn) LockAccount(ctx context.Context, id string) (*models.Account, error) {
	return t.GetAccount(ctx, id)
}

func (t *txn) ListAccounts(_ context.Context) ([]*models.Account, error) {
	out := make([]*models.Account, 0, len(t.s.accounts))
	for _, acct := range t.s.accounts {
		acct := acct
		out = append(out, &acct)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (t *txn) SetAccountRole(_ context.Context, id string, from, to models.Role) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	acct, ok := t.s.accounts[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if acct.Role != from {
		return false, nil
	}
	t.saveAccount(id)
	acct.Role = to
	acct.UpdatedAt = time.Now().UTC()
	t.s.accounts[id] = acct
	return true, nil
}

func (t *txn) SetDisplayName(_ context.Context, id, name string) error {
	if err := t.write(); err != nil {
		return err
	}
	acct, ok := t.s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	t.saveAccount(id)
	acct.DisplayName = name
	acct.UpdatedAt = time.Now().UTC()
	t.s.accounts[id] = acct
	return nil
}

// Tasks ------------------------------------------------------------------------

func (t *txn) CreateTask(_ context.Context, task *models.Task) error {
	if err := t.write(); err != nil {
		return err
	}
	prevID := t.s.nextTaskID
	t.undo = append(t.undo, func() { t.s.nextTaskID = prevID })
	task.ID = t.s.nextTaskID
	t.s.nextTaskID++

	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	t.saveTask(task.ID)
	t.s.tasks[task.ID] = cloneTask(*task)
	return nil
}

func (t *txn) GetTask(_ context.Context, id int64) (*models.Task, error) {
	task, ok := t.s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneTask(task)
	return &out, nil
}

func (t *txn) LockTaskRow(ctx context.Context, id int64) (*models.Task, error) {
	return t.GetTask(ctx, id)
}

func (t *txn) ListTasks(_ context.Context) ([]*models.Task, error) {
	out := make([]*models.Task, 0, len(t.s.tasks))
	for _, task := range t.s.tasks {
		cp := cloneTask(task)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *txn) AcquireTask(_ context.Context, id int64, holderID, lockID string, at time.Time) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	task, ok := t.s.tasks[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if task.Status != models.TaskStatusOpen {
		return false, nil
	}
	t.saveTask(id)
	task.Status = models.TaskStatusLocked
	task.HolderID = &holderID
	task.LockID = &lockID
	task.LockedAt = &at
	task.UpdatedAt = at
	t.s.tasks[id] = task
	return true, nil
}

func (t *txn) CompleteTask(_ context.Context, id int64, holderID string, at time.Time) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	task, ok := t.s.tasks[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if !task.HeldBy(holderID) {
		return false, nil
	}
	t.saveTask(id)
	task.Status = models.TaskStatusCompleted
	task.UpdatedAt = at
	t.s.tasks[id] = task
	return true, nil
}

func (t *txn) ReleaseTask(_ context.Context, id int64, holderID, lockID string, at time.Time) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	task, ok := t.s.tasks[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if !task.HeldBy(holderID) || task.LockID == nil || *task.LockID != lockID {
		return false, nil
	}
	t.saveTask(id)
	task.Status = models.TaskStatusOpen
	task.HolderID = nil
	task.LockID = nil
	task.LockedAt = nil
	task.UpdatedAt = at
	t.s.tasks[id] = task
	return true, nil
}

func (t *txn) ListExpiredLocks(_ context.Context, now time.Time) ([]*models.Task, error) {
	var out []*models.Task
	for _, task := range t.s.tasks {
		if expiresAt, ok := task.LockExpiresAt(); ok && !expiresAt.After(now) {
			cp := cloneTask(task)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Submissions ------------------------------------------------------------------

func (t *txn) CreateSubmission(_ context.Context, sub *models.Submission) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, exists := t.s.submissions[sub.ID]; exists {
		return fmt.Errorf("submission %s already exists", sub.ID)
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	t.saveSubmission(sub.ID)
	t.s.submissions[sub.ID] = cloneSubmission(*sub)

	n := len(t.s.subOrder)
	t.undo = append(t.undo, func() { t.s.subOrder = t.s.subOrder[:n] })
	t.s.subOrder = append(t.s.subOrder, sub.ID)
	return nil
}

func (t *txn) GetSubmission(_ context.Context, id string) (*models.Submission, error) {
	sub, ok := t.s.submissions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneSubmission(sub)
	return &out, nil
}

func (t *txn) LockSubmission(ctx context.Context, id string) (*models.Submission, error) {
	return t.GetSubmission(ctx, id)
}

func (t *txn) FindPendingSubmission(_ context.Context, taskID int64, lockID string) (*models.Submission, error) {
	for i := len(t.s.subOrder) - 1; i >= 0; i-- {
		sub := t.s.submissions[t.s.subOrder[i]]
		if sub.TaskID == taskID && sub.LockID == lockID && sub.Status == models.SubmissionPending {
			out := cloneSubmission(sub)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *txn) UpdateSubmissionContent(_ context.Context, id, content string) error {
	if err := t.write(); err != nil {
		return err
	}
	sub, ok := t.s.submissions[id]
	if !ok {
		return store.ErrNotFound
	}
	t.saveSubmission(id)
	sub.Content = content
	t.s.submissions[id] = sub
	return nil
}

func (t *txn) ResolveSubmission(_ context.Context, id string, status models.SubmissionStatus, score *float64, resolvedBy string, at time.Time) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	sub, ok := t.s.submissions[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if sub.Status != models.SubmissionPending {
		return false, nil
	}
	t.saveSubmission(id)
	sub.Status = status
	if score != nil {
		v := *score
		sub.Score = &v
	}
	sub.ResolvedBy = &resolvedBy
	sub.ResolvedAt = &at
	t.s.submissions[id] = sub
	return true, nil
}

func (t *txn) ListSubmissions(_ context.Context, filter store.SubmissionFilter) ([]*models.Submission, error) {
	var out []*models.Submission
	for i := len(t.s.subOrder) - 1; i >= 0; i-- {
		sub := t.s.submissions[t.s.subOrder[i]]
		if filter.AccountID != "" && sub.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && sub.Status != filter.Status {
			continue
		}
		cp := cloneSubmission(sub)
		out = append(out, &cp)
	}
	return out, nil
}

func (t *txn) CountApproved(_ context.Context, accountID string, kind models.TaskKind) (int, error) {
	count := 0
	for _, sub := range t.s.submissions {
		if sub.AccountID != accountID || sub.Status != models.SubmissionApproved {
			continue
		}
		if task, ok := t.s.tasks[sub.TaskID]; ok && task.Kind == kind {
			count++
		}
	}
	return count, nil
}

// Ledger -----------------------------------------------------------------------

func (t *txn) AppendLedgerEntry(_ context.Context, entry *models.LedgerEntry) error {
	if err := t.write(); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	n := len(t.s.ledger)
	prevBalance, hadBalance := t.s.balances[entry.AccountID]
	t.undo = append(t.undo, func() {
		t.s.ledger = t.s.ledger[:n]
		if hadBalance {
			t.s.balances[entry.AccountID] = prevBalance
		} else {
			delete(t.s.balances, entry.AccountID)
		}
	})
	t.s.ledger = append(t.s.ledger, cloneEntry(*entry))
	t.s.balances[entry.AccountID] = prevBalance.Add(entry.Amount)
	return nil
}

func (t *txn) SumLedger(_ context.Context, accountID string) (decimal.Decimal, error) {
	return t.s.balances[accountID], nil
}

func (t *txn) ListLedgerEntries(_ context.Context, filter store.LedgerFilter) ([]*models.LedgerEntry, error) {
	var out []*models.LedgerEntry
	for i := len(t.s.ledger) - 1; i >= 0; i-- {
		e := t.s.ledger[i]
		if filter.AccountID != "" && e.AccountID != filter.AccountID {
			continue
		}
		if filter.TaskID != 0 && (e.TaskID == nil || *e.TaskID != filter.TaskID) {
			continue
		}
		if filter.LockID != "" && (e.LockID == nil || *e.LockID != filter.LockID) {
			continue
		}
		cp := cloneEntry(e)
		out = append(out, &cp)
	}
	return out, nil
}

func (t *txn) RecordSettlement(_ context.Context, s *models.Settlement) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	key := fmt.Sprintf("%d:%s", s.TaskID, s.Reference)
	if _, exists := t.s.settlements[key]; exists {
		return false, nil
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	t.undo = append(t.undo, func() { delete(t.s.settlements, key) })
	t.s.settlements[key] = *s
	return true, nil
}

// helpers ------------------------------------------------------------------------

func cloneTask(task models.Task) models.Task {
	if task.HolderID != nil {
		v := *task.HolderID
		task.HolderID = &v
	}
	if task.LockID != nil {
		v := *task.LockID
		task.LockID = &v
	}
	if task.LockedAt != nil {
		v := *task.LockedAt
		task.LockedAt = &v
	}
	return task
}

func cloneSubmission(sub models.Submission) models.Submission {
	if sub.Score != nil {
		v := *sub.Score
		sub.Score = &v
	}
	if sub.ResolvedBy != nil {
		v := *sub.ResolvedBy
		sub.ResolvedBy = &v
	}
	if sub.ResolvedAt != nil {
		v := *sub.ResolvedAt
		sub.ResolvedAt = &v
	}
	return sub
}

func cloneEntry(e models.LedgerEntry) models.LedgerEntry {
	if e.TaskID != nil {
		v := *e.TaskID
		e.TaskID = &v
	}
	if e.SubmissionID != nil {
		v := *e.SubmissionID
		e.SubmissionID = &v
	}
	if e.LockID != nil {
		v := *e.LockID
		e.LockID = &v
	}
	return e
}
