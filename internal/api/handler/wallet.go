package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/maxpower-app/wallet-backend/internal/domain"
	"github.com/maxpower-app/wallet-backend/internal/service"
)

// WalletHandler handles the user-facing money flows: activation submissions
// and withdrawal requests.
type WalletHandler struct {
	wallet   *service.WalletService
	settings *service.SettingsService
}

func NewWalletHandler(wallet *service.WalletService, settings *service.SettingsService) *WalletHandler {
	return &WalletHandler{wallet: wallet, settings: settings}
}

type submitActivationRequest struct {
	Method       string `json:"method"`
	SenderNumber string `json:"mobileNumber"`
	ExternalRef  string `json:"trxId"`
	ReferralCode string `json:"referralCode"`
}

// SubmitActivation handles POST /v1/wallet/activation.
func (h *WalletHandler) SubmitActivation(w http.ResponseWriter, r *http.Request) {
	key, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req submitActivationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	tx, err := h.wallet.SubmitActivation(r.Context(), key, service.SubmitActivationRequest{
		Method:       req.Method,
		SenderNumber: req.SenderNumber,
		ExternalRef:  req.ExternalRef,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyActive):
			RespondError(w, r, http.StatusConflict, "wallet/already-active", "Account is already active")
		case errors.Is(err, service.ErrActivationPending):
			RespondError(w, r, http.StatusConflict, "wallet/activation-pending", "An activation request is already pending")
		case errors.Is(err, service.ErrUplineInactive):
			RespondError(w, r, http.StatusBadRequest, "wallet/upline-inactive", "Referrer account is not active")
		case errors.Is(err, service.ErrInvalidReferral):
			RespondError(w, r, http.StatusBadRequest, "wallet/invalid-referral", "Invalid referral code")
		case errors.Is(err, service.ErrMissingPaymentInfo):
			RespondError(w, r, http.StatusBadRequest, "request/missing-payment-info", "Sender number and transaction id are required")
		default:
			if status, slug, msg, ok := mapDomainError(err); ok {
				RespondError(w, r, status, slug, msg)
				return
			}
			zap.L().Error("submit activation failed", zap.Error(err))
			RespondError(w, r, http.StatusBadRequest, "wallet/activation-failed", err.Error())
		}
		return
	}

	RespondJSON(w, http.StatusAccepted, tx)
}

type withdrawalRequest struct {
	Amount        string `json:"amount"`
	Method        string `json:"method"`
	ReceiveNumber string `json:"mobileNumber"`
}

// RequestWithdrawal handles POST /v1/wallet/withdrawals.
func (h *WalletHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	key, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req withdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "amount must be a positive decimal string")
		return
	}

	tx, err := h.wallet.RequestWithdrawal(r.Context(), key, amount, req.Method, req.ReceiveNumber)
	if err != nil {
		if errors.Is(err, service.ErrMissingPaymentInfo) {
			RespondError(w, r, http.StatusBadRequest, "request/missing-payment-info", "Receiving mobile number is required")
			return
		}
		if status, slug, msg, ok := mapDomainError(err); ok {
			RespondError(w, r, status, slug, msg)
			return
		}
		zap.L().Error("request withdrawal failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "wallet/withdrawal-failed", err.Error())
		return
	}

	RespondJSON(w, http.StatusAccepted, tx)
}

// PaymentNumber handles GET /v1/wallet/payment-number. Users read this to know
// where to send activation payments.
func (h *WalletHandler) PaymentNumber(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		zap.L().Error("load settings failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "settings/read-failed", "Failed to load payment number")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{
		"activePaymentNumber": settings.ActivePaymentNumber,
	})
}
