package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/services"
)

type WalletHandler struct {
	wallet *services.WalletService
}

func NewWalletHandler(wallet *services.WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"10.00"`
}

// WalletView is a balance with the entries relevant to the request.
type WalletView struct {
	Balance string      `json:"balance" example:"15.00"`
	Entries []EntryView `json:"entries"`
}

// GetWallet returns the caller's balance and ledger history
// @Summary Wallet
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} WalletView
// @Router /wallet [get]
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	balance, err := h.wallet.Balance(r.Context(), caller.AccountID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	entries, err := h.wallet.Entries(r.Context(), caller.AccountID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WalletView{Balance: money(balance), Entries: entryViews(entries)})
}

// Withdraw pays out part of the caller's balance
// @Summary Withdraw
// @Tags Wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body WithdrawRequest true "Withdrawal"
// @Success 200 {object} WalletView
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Router /wallet/withdraw [post]
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	var req WithdrawRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, balance, err := h.wallet.Withdraw(r.Context(), caller.AccountID, req.Amount)
	if err != nil {
		services.SendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WalletView{Balance: money(balance), Entries: entryViews(oneEntry(entry))})
}

// ListTransactions returns ledger entries newest first: the caller's own, or
// every account's for admins
// @Summary Transaction history
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {array} EntryView
// @Router /transactions [get]
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	accountID := caller.AccountID
	if caller.IsAdmin() {
		accountID = r.URL.Query().Get("account_id")
	}
	entries, err := h.wallet.Entries(r.Context(), accountID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entryViews(entries))
}

func oneEntry(e *models.LedgerEntry) []*models.LedgerEntry {
	if e == nil {
		return nil
	}
	return []*models.LedgerEntry{e}
}
