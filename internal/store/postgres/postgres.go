// Package postgres implements store.Store on PostgreSQL through database/sql
// and lib/pq. Row locks (SELECT ... FOR UPDATE) and conditional updates keyed
// on the expected current status give per-row linearizability.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txn{tx: sqlTx}); err != nil {
		return contention(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return contention(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// contention marks deadlock and serialization failures with
// store.ErrContention.
func contention(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40P01", "40001":
			return fmt.Errorf("%w: %w", store.ErrContention, err)
		}
	}
	return err
}

// View runs fn in a transaction that is always rolled back. Writes are
// refused before they reach the database.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback()
	return fn(&txn{tx: sqlTx, readOnly: true})
}

type txn struct {
	tx       *sql.Tx
	readOnly bool
}

var _ store.Tx = (*txn)(nil)

func (t *txn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if t.readOnly {
		return nil, store.ErrReadOnly
	}
	return t.tx.ExecContext(ctx, query, args...)
}

// execAffected runs a conditional write and reports whether a row changed.
func (t *txn) execAffected(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := t.exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// Accounts ---------------------------------------------------------------------

const accountColumns = `id, phone_number, display_name, role, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var acct models.Account
	var role string
	if err := row.Scan(&acct.ID, &acct.PhoneNumber, &acct.DisplayName, &role, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		return nil, err
	}
	acct.Role = models.Role(role)
	return &acct, nil
}

func (t *txn) CreateAccount(ctx context.Context, acct *models.Account) error {
	now := time.Now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now
	_, err := t.exec(ctx, `
		INSERT INTO accounts (id, phone_number, display_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		acct.ID, acct.PhoneNumber, acct.DisplayName, string(acct.Role), acct.CreatedAt, acct.UpdatedAt)
	return err
}

func (t *txn) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	acct, err := scanAccount(t.tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	return acct, notFound(err)
}

func (t *txn) LockAccount(ctx context.Context, id string) (*models.Account, error) {
	if t.readOnly {
		return t.GetAccount(ctx, id)
	}
	acct, err := scanAccount(t.tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	return acct, notFound(err)
}

func (t *txn) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (t *txn) SetAccountRole(ctx context.Context, id string, from, to models.Role) (bool, error) {
	return t.execAffected(ctx, `
		UPDATE accounts SET role = $1, updated_at = $2
		WHERE id = $3 AND role = $4`,
		string(to), time.Now().UTC(), id, string(from))
}

func (t *txn) SetDisplayName(ctx context.Context, id, name string) error {
	ok, err := t.execAffected(ctx, `
		UPDATE accounts SET display_name = $1, updated_at = $2 WHERE id = $3`,
		name, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

// Tasks ------------------------------------------------------------------------

const taskColumns = `id, kind, deposit_amount, reward_amount, time_limit, reference_image_url, reference_text, status, holder_id, lock_id, locked_at, created_at, updated_at`

func scanTask(row rowScanner) (*models.Task, error) {
	var task models.Task
	var kind, status string
	var holderID, lockID sql.NullString
	var lockedAt sql.NullTime
	err := row.Scan(&task.ID, &kind, &task.Deposit, &task.Reward, &task.TimeLimit,
		&task.Reference.ImageURL, &task.Reference.Text, &status,
		&holderID, &lockID, &lockedAt, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	task.Kind = models.TaskKind(kind)
	task.Status = models.TaskStatus(status)
	if holderID.Valid {
		task.HolderID = &holderID.String
	}
	if lockID.Valid {
		task.LockID = &lockID.String
	}
	if lockedAt.Valid {
		task.LockedAt = &lockedAt.Time
	}
	return &task, nil
}

func (t *txn) CreateTask(ctx context.Context, task *models.Task) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	now := time.Now().UTC()
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO tasks (kind, deposit_amount, reward_amount, time_limit, reference_image_url, reference_text, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id`,
		string(task.Kind), task.Deposit, task.Reward, task.TimeLimit,
		task.Reference.ImageURL, task.Reference.Text, string(task.Status), now).Scan(&task.ID)
	if err != nil {
		return err
	}
	task.CreatedAt = now
	task.UpdatedAt = now
	return nil
}

func (t *txn) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	task, err := scanTask(t.tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	return task, notFound(err)
}

func (t *txn) LockTaskRow(ctx context.Context, id int64) (*models.Task, error) {
	if t.readOnly {
		return t.GetTask(ctx, id)
	}
	task, err := scanTask(t.tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
	return task, notFound(err)
}

func (t *txn) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (t *txn) ListTasks(ctx context.Context) ([]*models.Task, error) {
	return t.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
}

func (t *txn) AcquireTask(ctx context.Context, id int64, holderID, lockID string, at time.Time) (bool, error) {
	return t.execAffected(ctx, `
		UPDATE tasks SET status = 'LOCKED', holder_id = $1, lock_id = $2, locked_at = $3, updated_at = $3
		WHERE id = $4 AND status = 'OPEN'`,
		holderID, lockID, at, id)
}

func (t *txn) CompleteTask(ctx context.Context, id int64, holderID string, at time.Time) (bool, error) {
	return t.execAffected(ctx, `
		UPDATE tasks SET status = 'COMPLETED', updated_at = $1
		WHERE id = $2 AND status = 'LOCKED' AND holder_id = $3`,
		at, id, holderID)
}

func (t *txn) ReleaseTask(ctx context.Context, id int64, holderID, lockID string, at time.Time) (bool, error) {
	return t.execAffected(ctx, `
		UPDATE tasks SET status = 'OPEN', holder_id = NULL, lock_id = NULL, locked_at = NULL, updated_at = $1
		WHERE id = $2 AND status = 'LOCKED' AND holder_id = $3 AND lock_id = $4`,
		at, id, holderID, lockID)
}

func (t *txn) ListExpiredLocks(ctx context.Context, now time.Time) ([]*models.Task, error) {
	return t.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status = 'LOCKED' AND locked_at + make_interval(mins => time_limit) <= $1
		ORDER BY id`, now)
}

// Submissions ------------------------------------------------------------------

const submissionColumns = `id, task_id, account_id, lock_id, content, score, status, resolved_by, created_at, resolved_at`

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var sub models.Submission
	var status string
	var score sql.NullFloat64
	var resolvedBy sql.NullString
	var resolvedAt sql.NullTime
	err := row.Scan(&sub.ID, &sub.TaskID, &sub.AccountID, &sub.LockID, &sub.Content,
		&score, &status, &resolvedBy, &sub.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	sub.Status = models.SubmissionStatus(status)
	if score.Valid {
		sub.Score = &score.Float64
	}
	if resolvedBy.Valid {
		sub.ResolvedBy = &resolvedBy.String
	}
	if resolvedAt.Valid {
		sub.ResolvedAt = &resolvedAt.Time
	}
	return &sub, nil
}

func (t *txn) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := t.exec(ctx, `
		INSERT INTO submissions (id, task_id, account_id, lock_id, content, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.TaskID, sub.AccountID, sub.LockID, sub.Content, string(sub.Status), sub.CreatedAt)
	return err
}

func (t *txn) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	sub, err := scanSubmission(t.tx.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	return sub, notFound(err)
}

func (t *txn) LockSubmission(ctx context.Context, id string) (*models.Submission, error) {
	if t.readOnly {
		return t.GetSubmission(ctx, id)
	}
	sub, err := scanSubmission(t.tx.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1 FOR UPDATE`, id))
	return sub, notFound(err)
}

func (t *txn) FindPendingSubmission(ctx context.Context, taskID int64, lockID string) (*models.Submission, error) {
	sub, err := scanSubmission(t.tx.QueryRowContext(ctx, `
		SELECT `+submissionColumns+` FROM submissions
		WHERE task_id = $1 AND lock_id = $2 AND status = 'PENDING'
		LIMIT 1`, taskID, lockID))
	return sub, notFound(err)
}

func (t *txn) UpdateSubmissionContent(ctx context.Context, id, content string) error {
	ok, err := t.execAffected(ctx, `UPDATE submissions SET content = $1 WHERE id = $2`, content, id)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

func (t *txn) ResolveSubmission(ctx context.Context, id string, status models.SubmissionStatus, score *float64, resolvedBy string, at time.Time) (bool, error) {
	return t.execAffected(ctx, `
		UPDATE submissions SET status = $1, score = COALESCE($2, score), resolved_by = $3, resolved_at = $4
		WHERE id = $5 AND status = 'PENDING'`,
		string(status), score, resolvedBy, at, id)
}

func (t *txn) ListSubmissions(ctx context.Context, filter store.SubmissionFilter) ([]*models.Submission, error) {
	var where []string
	var args []any
	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		where = append(where, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (t *txn) CountApproved(ctx context.Context, accountID string, kind models.TaskKind) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM submissions s
		JOIN tasks t ON t.id = s.task_id
		WHERE s.account_id = $1 AND s.status = 'APPROVED' AND t.kind = $2`,
		accountID, string(kind)).Scan(&count)
	return count, err
}

// Ledger -----------------------------------------------------------------------

const ledgerColumns = `id, account_id, amount, kind, task_id, submission_id, lock_id, created_at`

func (t *txn) AppendLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := t.exec(ctx, `
		INSERT INTO ledger_entries (id, account_id, amount, kind, task_id, submission_id, lock_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.AccountID, entry.Amount, string(entry.Kind),
		entry.TaskID, entry.SubmissionID, entry.LockID, entry.CreatedAt)
	return err
}

func (t *txn) SumLedger(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account_id = $1`, accountID).Scan(&sum)
	return sum, err
}

func (t *txn) ListLedgerEntries(ctx context.Context, filter store.LedgerFilter) ([]*models.LedgerEntry, error) {
	var where []string
	var args []any
	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		where = append(where, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if filter.TaskID != 0 {
		args = append(args, filter.TaskID)
		where = append(where, fmt.Sprintf("task_id = $%d", len(args)))
	}
	if filter.LockID != "" {
		args = append(args, filter.LockID)
		where = append(where, fmt.Sprintf("lock_id = $%d", len(args)))
	}
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var kind string
		var taskID sql.NullInt64
		var submissionID, lockID sql.NullString
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &kind, &taskID, &submissionID, &lockID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = models.EntryKind(kind)
		if taskID.Valid {
			e.TaskID = &taskID.Int64
		}
		if submissionID.Valid {
			e.SubmissionID = &submissionID.String
		}
		if lockID.Valid {
			e.LockID = &lockID.String
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (t *txn) RecordSettlement(ctx context.Context, s *models.Settlement) (bool, error) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return t.execAffected(ctx, `
		INSERT INTO settlements (task_id, reference, account_id, reward, refund, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id, reference) DO NOTHING`,
		s.TaskID, s.Reference, s.AccountID, s.Reward, s.Refund, s.CreatedAt)
}
