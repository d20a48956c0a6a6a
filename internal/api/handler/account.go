package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/maxpower-app/wallet-backend/internal/service"
)

// AccountHandler handles account provisioning, profile reads and referral
// lookups.
type AccountHandler struct {
	accounts *service.AccountService
	ledger   *service.LedgerService
}

func NewAccountHandler(accounts *service.AccountService, ledger *service.LedgerService) *AccountHandler {
	return &AccountHandler{accounts: accounts, ledger: ledger}
}

type createAccountRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CreateAccount handles POST /v1/accounts. The internal key is the
// authenticated subject from the identity provider.
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	key, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-name", "name is required")
		return
	}

	account, err := h.accounts.Provision(r.Context(), service.ProvisionRequest{
		Key:   key,
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		if err == service.ErrAccountExists {
			RespondError(w, r, http.StatusConflict, "account/already-exists", "Account already exists")
			return
		}
		if status, slug, msg, ok := mapDomainError(err); ok {
			RespondError(w, r, status, slug, msg)
			return
		}
		zap.L().Error("provision account failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "account/create-failed", "Failed to create account")
		return
	}

	RespondJSON(w, http.StatusCreated, account)
}

// Me handles GET /v1/accounts/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	key, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	account, err := h.accounts.GetByKey(r.Context(), key)
	if err != nil {
		if status, slug, msg, ok := mapDomainError(err); ok {
			RespondError(w, r, status, slug, msg)
			return
		}
		zap.L().Error("load account failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "account/read-failed", "Failed to load account")
		return
	}

	RespondJSON(w, http.StatusOK, account)
}

// Transactions handles GET /v1/accounts/me/transactions.
func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	key, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	account, err := h.accounts.GetByKey(r.Context(), key)
	if err != nil {
		if status, slug, msg, ok := mapDomainError(err); ok {
			RespondError(w, r, status, slug, msg)
			return
		}
		zap.L().Error("load account failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "account/read-failed", "Failed to load account")
		return
	}

	txs, err := h.ledger.ListForAccount(r.Context(), account.DisplayID)
	if err != nil {
		zap.L().Error("list account transactions failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "ledger/list-failed", "Failed to list transactions")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"items": txs,
		"count": len(txs),
	})
}

// ReferralCount handles GET /v1/accounts/me/referrals.
func (h *AccountHandler) ReferralCount(w http.ResponseWriter, r *http.Request) {
	key, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	account, err := h.accounts.GetByKey(r.Context(), key)
	if err != nil {
		if status, slug, msg, ok := mapDomainError(err); ok {
			RespondError(w, r, status, slug, msg)
			return
		}
		zap.L().Error("load account failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "account/read-failed", "Failed to load account")
		return
	}

	count, err := h.accounts.ReferralCount(r.Context(), account.ReferralCode)
	if err != nil {
		zap.L().Error("referral count failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "referral/count-failed", "Failed to count referrals")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"referralCode": account.ReferralCode,
		"count":        count,
	})
}

// CheckReferral handles GET /v1/referrals/{code}. It is used during signup,
// before the caller has an account.
func (h *AccountHandler) CheckReferral(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	check, err := h.accounts.CheckReferralCode(r.Context(), code)
	if err != nil {
		if status, _, _, ok := mapDomainError(err); ok && status == http.StatusNotFound {
			RespondError(w, r, http.StatusNotFound, "referral/unknown-code", "Unknown referral code")
			return
		}
		zap.L().Error("referral check failed", zap.Error(err), zap.String("code", code))
		RespondError(w, r, http.StatusInternalServerError, "referral/check-failed", "Failed to check referral code")
		return
	}

	RespondJSON(w, http.StatusOK, check)
}
