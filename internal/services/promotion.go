package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/store"
)

// PromotionRule upgrades a TRAINEE to WRITER once enough assessment
// submissions have been approved, crediting a one-time bonus.
type PromotionRule struct {
	store     store.Store
	wallet    *WalletService
	threshold int
	bonus     decimal.Decimal
}

func NewPromotionRule(st store.Store, wallet *WalletService, threshold int, bonus decimal.Decimal) *PromotionRule {
	return &PromotionRule{store: st, wallet: wallet, threshold: threshold, bonus: bonus.Round(2)}
}

// Promotion is the outcome of a successful evaluation.
type Promotion struct {
	AccountID string
	Bonus     *models.LedgerEntry
}

// EvaluateTx runs inside the approval unit of work. It returns nil when the
// account is not (or no longer) eligible; repeated calls are no-ops.
func (p *PromotionRule) EvaluateTx(ctx context.Context, tx store.Tx, accountID string) (*Promotion, error) {
	acct, err := tx.LockAccount(ctx, accountID)
	if err != nil {
		return nil, notFoundOr(err, "account %s not found", accountID)
	}
	if acct.Role != models.RoleTrainee {
		return nil, nil
	}

	approved, err := tx.CountApproved(ctx, accountID, models.TaskKindAssessment)
	if err != nil {
		return nil, err
	}
	if approved < p.threshold {
		return nil, nil
	}

	changed, err := tx.SetAccountRole(ctx, accountID, models.RoleTrainee, models.RoleWriter)
	if err != nil || !changed {
		return nil, err
	}

	promotion := &Promotion{AccountID: accountID}
	if promotion.Bonus, err = p.wallet.CreditTx(ctx, tx, accountID, p.bonus, models.EntryPromotionBonus); err != nil {
		return nil, err
	}
	return promotion, nil
}

// Evaluate runs EvaluateTx in its own unit of work.
func (p *PromotionRule) Evaluate(ctx context.Context, accountID string) (*Promotion, error) {
	var promotion *Promotion
	err := p.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		promotion, err = p.EvaluateTx(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if promotion != nil {
		p.wallet.Record(promotion.Bonus)
	}
	return promotion, nil
}
