package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/scribeworks/backend/internal/services"
)

type AccountHandler struct {
	accounts *services.AccountService
	wallet   *services.WalletService
}

func NewAccountHandler(accounts *services.AccountService, wallet *services.WalletService) *AccountHandler {
	return &AccountHandler{accounts: accounts, wallet: wallet}
}

// AdjustRequest is an admin balance correction. Negative amounts debit.
type AdjustRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"2.50"`
}

// Me returns the caller's account
// @Summary Current account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} AccountView
// @Router /me [get]
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	acct, err := h.accounts.GetAccount(r.Context(), caller.AccountID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountView(acct))
}

// UpdateMe changes the caller's display name
// @Summary Update profile
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.UpdateProfileRequest true "Profile"
// @Success 200 {object} AccountView
// @Failure 400 {object} services.ErrorResponse
// @Router /me [patch]
func (h *AccountHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	var req services.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	acct, err := h.accounts.UpdateProfile(r.Context(), caller.AccountID, req)
	if err != nil {
		services.SendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountView(acct))
}

// ListAccounts lists every account with its balance
// @Summary List accounts
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} AccountView
// @Failure 403 {object} services.ErrorResponse
// @Router /accounts [get]
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAccounts(r.Context())
	if err != nil {
		services.SendError(w, err)
		return
	}
	out := make([]AccountView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountView(a))
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdateAccount sets an account's role or display name
// @Summary Update account
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Param request body services.UpdateAccountRequest true "Changes"
// @Success 200 {object} AccountView
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{accountId} [patch]
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	var req services.UpdateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	acct, err := h.accounts.UpdateAccount(r.Context(), chi.URLParam(r, "accountId"), req, caller.AccountID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountView(acct))
}

// Adjust records an admin balance correction
// @Summary Adjust balance
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Param request body AdjustRequest true "Adjustment"
// @Success 200 {object} WalletView
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Router /accounts/{accountId}/adjust [post]
func (h *AccountHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	var req AdjustRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, balance, err := h.wallet.Adjust(r.Context(), chi.URLParam(r, "accountId"), req.Amount, caller.AccountID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WalletView{Balance: money(balance), Entries: entryViews(oneEntry(entry))})
}
