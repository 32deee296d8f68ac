package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/backend/internal/audit"
	"github.com/scribeworks/backend/internal/metrics"
	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/scoring"
	"github.com/scribeworks/backend/internal/store"
	"github.com/scribeworks/backend/internal/store/memory"
)

type fixture struct {
	store     *memory.Store
	ledger    *Ledger
	wallet    *WalletService
	registry  *TaskRegistry
	promotion *PromotionRule
	engine    *SubmissionEngine
	accounts  *AccountService
	events    *recordingPublisher
	metrics   *metrics.Collector
	adminID   string
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	scorer    scoring.Adapter
	settings  EngineSettings
	wrapStore func(store.Store) store.Store
}

func withScorer(s scoring.Adapter) fixtureOption {
	return func(c *fixtureConfig) { c.scorer = s }
}

func withScoringTimeout(d time.Duration) fixtureOption {
	return func(c *fixtureConfig) { c.settings.ScoringTimeout = d }
}

// withStore lets a test intercept the store the services use.
func withStore(wrap func(store.Store) store.Store) fixtureOption {
	return func(c *fixtureConfig) { c.wrapStore = wrap }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{
		scorer:   fixedScorer(0.9),
		settings: EngineSettings{ApprovalThreshold: 0.80, ScoringTimeout: time.Second},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	log, _ := test.NewNullLogger()
	mem := memory.New()
	var st store.Store = mem
	if cfg.wrapStore != nil {
		st = cfg.wrapStore(mem)
	}
	auditLog := audit.NewLogger(log)
	rec := metrics.NewCollector("test")
	events := &recordingPublisher{}
	vh := NewValidationHelper()

	ledger := NewLedger()
	wallet := NewWalletService(st, ledger, auditLog, rec, log)
	registry := NewTaskRegistry(st, wallet, vh, events, auditLog, rec, log)
	promotion := NewPromotionRule(st, wallet, 2, decimal.RequireFromString("5.00"))
	engine := NewSubmissionEngine(st, registry, wallet, ledger, promotion, cfg.scorer, cfg.settings, vh, events, auditLog, rec, log)
	accounts := NewAccountService(st, ledger, vh, auditLog, log)

	f := &fixture{
		store:     mem,
		ledger:    ledger,
		wallet:    wallet,
		registry:  registry,
		promotion: promotion,
		engine:    engine,
		accounts:  accounts,
		events:    events,
		metrics:   rec,
	}
	f.adminID = f.account(t, models.RoleAdmin, "0")
	return f
}

// account creates an account with the given role and opening balance.
func (f *fixture) account(t *testing.T, role models.Role, funds string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := f.accounts.EnsureAccount(context.Background(), id, role, "+2348000000000")
	require.NoError(t, err)

	if amount := decimal.RequireFromString(funds); amount.IsPositive() {
		_, _, err := f.wallet.Adjust(context.Background(), id, amount, "seed")
		require.NoError(t, err)
	}
	return id
}

func (f *fixture) task(t *testing.T, kind models.TaskKind, deposit, reward string) *models.Task {
	t.Helper()
	task, err := f.registry.CreateTask(context.Background(), CreateTaskRequest{
		Kind:          kind,
		Deposit:       decimal.RequireFromString(deposit),
		Reward:        decimal.RequireFromString(reward),
		TimeLimit:     30,
		ReferenceText: "the quick brown fox",
	})
	require.NoError(t, err)
	return task
}

func (f *fixture) balance(t *testing.T, accountID string) string {
	t.Helper()
	b, err := f.wallet.Balance(context.Background(), accountID)
	require.NoError(t, err)
	return b.StringFixed(2)
}

func (f *fixture) entries(t *testing.T, accountID string, kind models.EntryKind) []*models.LedgerEntry {
	t.Helper()
	all, err := f.wallet.Entries(context.Background(), accountID)
	require.NoError(t, err)
	var out []*models.LedgerEntry
	for _, e := range all {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (f *fixture) getTask(t *testing.T, id int64) *models.Task {
	t.Helper()
	task, err := f.registry.GetTask(context.Background(), id)
	require.NoError(t, err)
	return task
}

func (f *fixture) getSubmission(t *testing.T, id string) *models.Submission {
	t.Helper()
	var sub *models.Submission
	require.NoError(t, f.store.View(context.Background(), func(tx store.Tx) error {
		var err error
		sub, err = tx.GetSubmission(context.Background(), id)
		return err
	}))
	return sub
}
