package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/scribeworks/backend/internal/audit"
	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/store"
)

// UpdateAccountRequest is an admin patch; nil fields are left unchanged.
type UpdateAccountRequest struct {
	Role        *models.Role `json:"role" validate:"omitempty,oneof=TRAINEE WRITER ADMIN"`
	DisplayName *string      `json:"display_name" validate:"omitempty,max=64"`
}

// UpdateProfileRequest is what an account may change about itself.
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"max=64"`
}

type AccountService struct {
	store     store.Store
	ledger    *Ledger
	validator *ValidationHelper
	audit     *audit.Logger
	log       logrus.FieldLogger
}

func NewAccountService(st store.Store, ledger *Ledger, vh *ValidationHelper, auditLog *audit.Logger, log logrus.FieldLogger) *AccountService {
	return &AccountService{
		store:     st,
		ledger:    ledger,
		validator: vh,
		audit:     auditLog,
		log:       log.WithField("component", "accounts"),
	}
}

// EnsureAccount returns the account of a verified identity, creating it on
// first sight. The role claim only applies at creation; afterwards the stored
// role wins.
func (s *AccountService) EnsureAccount(ctx context.Context, accountID string, role models.Role, phoneNumber string) (*models.Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, validationError("account id is required")
	}
	if !role.Valid() {
		role = models.RoleTrainee
	}

	var acct *models.Account
	created := false
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.GetAccount(ctx, accountID)
		switch {
		case err == nil:
			acct = existing
		case errors.Is(err, store.ErrNotFound):
			acct = &models.Account{
				ID:          accountID,
				PhoneNumber: phoneNumber,
				Role:        role,
			}
			if err := tx.CreateAccount(ctx, acct); err != nil {
				return err
			}
			created = true
		default:
			return err
		}
		acct.Balance, err = s.ledger.Balance(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.log.WithFields(logrus.Fields{
			"account_id": accountID,
			"role":       role,
		}).Info("[ACCOUNT] created")
	}
	return acct, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var acct *models.Account
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		if acct, err = tx.GetAccount(ctx, id); err != nil {
			return notFoundOr(err, "account %s not found", id)
		}
		acct.Balance, err = s.ledger.Balance(ctx, tx, id)
		return err
	})
	return acct, err
}

// ListAccounts returns every account, newest first, with balances.
func (s *AccountService) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		if accounts, err = tx.ListAccounts(ctx); err != nil {
			return err
		}
		for _, acct := range accounts {
			if acct.Balance, err = s.ledger.Balance(ctx, tx, acct.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return accounts, err
}

// UpdateAccount lets an admin set a role explicitly or rename an account.
func (s *AccountService) UpdateAccount(ctx context.Context, id string, req UpdateAccountRequest, adminID string) (*models.Account, error) {
	if err := s.validator.ValidateStruct(&req); err != nil {
		return nil, fromValidator(err)
	}

	var acct *models.Account
	var fromRole models.Role
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		current, err := tx.LockAccount(ctx, id)
		if err != nil {
			return notFoundOr(err, "account %s not found", id)
		}
		fromRole = current.Role

		if req.Role != nil && *req.Role != current.Role {
			changed, err := tx.SetAccountRole(ctx, id, current.Role, *req.Role)
			if err != nil {
				return err
			}
			if !changed {
				return conflictError("account %s role changed concurrently", id)
			}
		}
		if req.DisplayName != nil {
			if err := tx.SetDisplayName(ctx, id, strings.TrimSpace(*req.DisplayName)); err != nil {
				return err
			}
		}

		if acct, err = tx.GetAccount(ctx, id); err != nil {
			return err
		}
		acct.Balance, err = s.ledger.Balance(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if acct.Role != fromRole {
		s.audit.LogRoleChange(id, fromRole, acct.Role, adminID)
	}
	return acct, nil
}

// UpdateProfile changes the caller's own display name.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest) (*models.Account, error) {
	if err := s.validator.ValidateStruct(&req); err != nil {
		return nil, fromValidator(err)
	}
	name := strings.TrimSpace(req.DisplayName)
	return s.UpdateAccount(ctx, id, UpdateAccountRequest{DisplayName: &name}, id)
}
