package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/maxpower-app/wallet-backend/internal/domain"
	"github.com/maxpower-app/wallet-backend/internal/models"
	"github.com/maxpower-app/wallet-backend/internal/referral"
	"github.com/maxpower-app/wallet-backend/internal/store"
)

// WalletService handles the user-side submission flows: reporting a manual
// activation payment and requesting a payout. Both append pending ledger
// records for the admin queue; settlement happens later via
// SettlementService.
type WalletService struct {
	store         store.Store
	accounts      *AccountService
	resolver      *referral.Resolver
	activationFee decimal.Decimal
}

func NewWalletService(st store.Store, accounts *AccountService, resolver *referral.Resolver, activationFee decimal.Decimal) *WalletService {
	return &WalletService{
		store:         st,
		accounts:      accounts,
		resolver:      resolver,
		activationFee: activationFee,
	}
}

var (
	ErrAlreadyActive      = errors.New("account is already active")
	ErrUplineInactive     = errors.New("upline account is not active")
	ErrActivationPending  = errors.New("an activation request is already pending")
	ErrInvalidReferral    = errors.New("invalid referral code")
	ErrMissingPaymentInfo = errors.New("payment details are required")
)

// SubmitActivationRequest reports a manual activation payment.
type SubmitActivationRequest struct {
	Method       string
	SenderNumber string
	ExternalRef  string
	ReferralCode string
}

// SubmitActivation records the claimed referral code on the account and
// appends a pending activation transaction carrying the configured fee, in a
// single commit. The claimed upline must be active unless the code is a
// terminator (master) code.
func (s *WalletService) SubmitActivation(ctx context.Context, accountKey string, req SubmitActivationRequest) (models.Transaction, error) {
	if req.SenderNumber == "" || req.ExternalRef == "" {
		return models.Transaction{}, ErrMissingPaymentInfo
	}
	if !domain.ValidMethod(req.Method) || req.Method == domain.MethodAdmin {
		return models.Transaction{}, fmt.Errorf("unsupported payment method %q", req.Method)
	}
	code := strings.ToUpper(strings.TrimSpace(req.ReferralCode))
	if code == "" {
		return models.Transaction{}, ErrInvalidReferral
	}

	account, err := s.accounts.GetByKey(ctx, accountKey)
	if err != nil {
		return models.Transaction{}, err
	}
	if account.IsActive {
		return models.Transaction{}, ErrAlreadyActive
	}

	if !s.resolver.IsTerminator(code) {
		check, err := s.accounts.CheckReferralCode(ctx, code)
		if err != nil {
			return models.Transaction{}, fmt.Errorf("%w: %s", ErrInvalidReferral, code)
		}
		if !check.UplineActive {
			return models.Transaction{}, ErrUplineInactive
		}
	}

	pending, err := s.pendingActivationExists(ctx, account.DisplayID)
	if err != nil {
		return models.Transaction{}, err
	}
	if pending {
		return models.Transaction{}, ErrActivationPending
	}

	tx := models.Transaction{
		ID:                  store.NewKey(),
		AccountDisplayID:    account.DisplayID,
		Kind:                domain.TxKindActivation,
		Amount:              s.activationFee,
		Method:              req.Method,
		CounterpartyNumber:  req.SenderNumber,
		ExternalRef:         req.ExternalRef,
		Status:              domain.TxStatusPending,
		CreatedAt:           time.Now().UTC(),
		ReferralCodeClaimed: code,
	}
	if err := s.store.Commit(ctx, map[string]any{
		store.Path(store.CollectionUsers, accountKey, "referrerId"): code,
		store.Path(store.CollectionTransactions, tx.ID):             tx,
	}); err != nil {
		return models.Transaction{}, fmt.Errorf("%w: %v", domain.ErrCommitFailed, err)
	}

	zap.L().Info("activation request submitted",
		zap.String("account", account.DisplayID),
		zap.String("referral_code", code),
		zap.String("method", req.Method),
	)
	return tx, nil
}

// RequestWithdrawal debits the balance and appends a pending withdrawal in
// one commit. Rejection later refunds the debit; approval only flips status.
func (s *WalletService) RequestWithdrawal(ctx context.Context, accountKey string, amount decimal.Decimal, method, receiveNumber string) (models.Transaction, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return models.Transaction{}, err
	}
	if !domain.ValidMethod(method) || method == domain.MethodAdmin {
		return models.Transaction{}, fmt.Errorf("unsupported payment method %q", method)
	}
	if receiveNumber == "" {
		return models.Transaction{}, ErrMissingPaymentInfo
	}

	account, err := s.accounts.GetByKey(ctx, accountKey)
	if err != nil {
		return models.Transaction{}, err
	}
	if !account.IsActive {
		return models.Transaction{}, domain.ErrAccountInactive
	}
	if account.Balance.LessThan(amount) {
		return models.Transaction{}, fmt.Errorf("%w: balance %s, requested %s",
			domain.ErrInsufficientFunds, account.Balance, amount)
	}

	tx := models.Transaction{
		ID:                 store.NewKey(),
		AccountDisplayID:   account.DisplayID,
		Kind:               domain.TxKindWithdrawal,
		Amount:             amount,
		Method:             method,
		CounterpartyNumber: receiveNumber,
		Status:             domain.TxStatusPending,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.store.Commit(ctx, map[string]any{
		store.Path(store.CollectionUsers, accountKey, "balance"): store.Incr(amount.Neg()),
		store.Path(store.CollectionTransactions, tx.ID):          tx,
	}); err != nil {
		return models.Transaction{}, fmt.Errorf("%w: %v", domain.ErrCommitFailed, err)
	}

	zap.L().Info("withdrawal requested",
		zap.String("account", account.DisplayID),
		zap.String("amount", amount.String()),
		zap.String("method", method),
	)
	return tx, nil
}

func (s *WalletService) pendingActivationExists(ctx context.Context, displayID string) (bool, error) {
	raw, err := s.store.GetAll(ctx, store.CollectionTransactions)
	if err != nil {
		return false, fmt.Errorf("load transactions: %w", err)
	}
	for _, doc := range raw {
		tx, err := models.DecodeTransaction(doc)
		if err != nil {
			continue
		}
		if tx.Kind == domain.TxKindActivation && tx.Status == domain.TxStatusPending && tx.AccountDisplayID == displayID {
			return true, nil
		}
	}
	return false, nil
}
