package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/maxpower-app/wallet-backend/internal/domain"
	"github.com/maxpower-app/wallet-backend/internal/models"
	"github.com/maxpower-app/wallet-backend/internal/service"
)

// AdminHandler handles the operator endpoints: the pending queue, settlement
// decisions, manual credits and platform settings.
type AdminHandler struct {
	settle   *service.SettlementService
	credit   *service.CreditService
	ledger   *service.LedgerService
	settings *service.SettingsService
}

func NewAdminHandler(settle *service.SettlementService, credit *service.CreditService, ledger *service.LedgerService, settings *service.SettingsService) *AdminHandler {
	return &AdminHandler{settle: settle, credit: credit, ledger: ledger, settings: settings}
}

// ListTransactions handles GET /v1/admin/transactions. Defaults to the
// pending queue; status and kind are query filters.
func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.TxStatusPending
	}
	kind := strings.TrimSpace(r.URL.Query().Get("kind"))
	if kind != "" && !domain.ValidTxKind(kind) {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-kind", "Unknown transaction kind")
		return
	}

	txs, err := h.ledger.ListByStatus(r.Context(), status, kind)
	if err != nil {
		zap.L().Error("list transactions failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "ledger/list-failed", "Failed to list transactions")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"items": txs,
		"count": len(txs),
	})
}

// Approve handles POST /v1/admin/transactions/{id}/approve. Settlement is
// dispatched on the transaction kind.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")

	current, err := h.ledger.Get(r.Context(), txID)
	if err != nil {
		h.respondSettleError(w, r, txID, err)
		return
	}

	var tx models.Transaction
	switch current.Kind {
	case domain.TxKindActivation:
		tx, err = h.settle.SettleActivation(r.Context(), txID)
	case domain.TxKindWithdrawal:
		tx, err = h.settle.SettleWithdrawal(r.Context(), txID)
	default:
		RespondError(w, r, http.StatusBadRequest, "transaction/not-approvable", "Transaction kind cannot be approved")
		return
	}
	if err != nil {
		h.respondSettleError(w, r, txID, err)
		return
	}

	RespondJSON(w, http.StatusOK, tx)
}

// Reject handles POST /v1/admin/transactions/{id}/reject.
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")

	tx, err := h.settle.Reject(r.Context(), txID)
	if err != nil {
		h.respondSettleError(w, r, txID, err)
		return
	}

	RespondJSON(w, http.StatusOK, tx)
}

type creditRequest struct {
	AccountID string `json:"userId"`
	Amount    string `json:"amount"`
}

// Credit handles POST /v1/admin/credits.
func (h *AdminHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.AccountID) == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-account-id", "userId is required")
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "amount must be a positive decimal string")
		return
	}

	tx, err := h.credit.CreditAccount(r.Context(), req.AccountID, amount)
	if err != nil {
		if status, slug, msg, ok := mapDomainError(err); ok {
			RespondError(w, r, status, slug, msg)
			return
		}
		zap.L().Error("manual credit failed", zap.Error(err), zap.String("account", req.AccountID))
		RespondError(w, r, http.StatusInternalServerError, "credit/failed", "Failed to apply credit")
		return
	}

	RespondJSON(w, http.StatusCreated, tx)
}

// Settings handles GET /v1/admin/settings.
func (h *AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		zap.L().Error("load settings failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "settings/read-failed", "Failed to load settings")
		return
	}
	RespondJSON(w, http.StatusOK, settings)
}

type paymentNumberRequest struct {
	Number string `json:"activePaymentNumber"`
}

// SetPaymentNumber handles PUT /v1/admin/settings/payment-number.
func (h *AdminHandler) SetPaymentNumber(w http.ResponseWriter, r *http.Request) {
	var req paymentNumberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Number) == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-number", "activePaymentNumber is required")
		return
	}

	if err := h.settings.SetPaymentNumber(r.Context(), req.Number); err != nil {
		if status, slug, msg, ok := mapDomainError(err); ok {
			RespondError(w, r, status, slug, msg)
			return
		}
		zap.L().Error("set payment number failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "settings/update-failed", "Failed to update payment number")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"activePaymentNumber": strings.TrimSpace(req.Number)})
}

func (h *AdminHandler) respondSettleError(w http.ResponseWriter, r *http.Request, txID string, err error) {
	if status, slug, msg, ok := mapDomainError(err); ok {
		RespondError(w, r, status, slug, msg)
		return
	}
	zap.L().Error("settlement failed", zap.Error(err), zap.String("transaction_id", txID))
	RespondError(w, r, http.StatusBadRequest, "settlement/failed", err.Error())
}
