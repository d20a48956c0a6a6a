package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/maxpower-app/wallet-backend/internal/api/middleware"
	"github.com/maxpower-app/wallet-backend/internal/api/problem"
	"github.com/maxpower-app/wallet-backend/internal/domain"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

func requestActor(r *http.Request) (string, bool, error) {
	key := middleware.AccountKeyFromContext(r.Context())
	if key == "" {
		return "", false, errors.New("missing account in auth context")
	}
	return key, middleware.RoleFromContext(r.Context()) == domain.RoleAdmin, nil
}

// mapDomainError translates known service errors to HTTP responses. Unknown
// errors are left for the caller to log and report as 500.
func mapDomainError(err error) (status int, problemType, message string, ok bool) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, "account/not-found", "Account not found", true
	case errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound, "transaction/not-found", "Transaction not found", true
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return http.StatusConflict, "transaction/already-processed", "Transaction has already been processed", true
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "request/invalid-amount", "Amount must be greater than zero", true
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusBadRequest, "wallet/insufficient-funds", "Insufficient balance", true
	case errors.Is(err, domain.ErrAccountInactive):
		return http.StatusForbidden, "wallet/account-inactive", "Account is not active", true
	case errors.Is(err, domain.ErrCommitFailed):
		return http.StatusServiceUnavailable, "store/commit-failed", "Storage commit failed, retry the request", true
	default:
		return 0, "", "", false
	}
}
