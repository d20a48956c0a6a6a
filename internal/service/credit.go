package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/maxpower-app/wallet-backend/internal/domain"
	"github.com/maxpower-app/wallet-backend/internal/models"
	"github.com/maxpower-app/wallet-backend/internal/observability"
	"github.com/maxpower-app/wallet-backend/internal/store"
)

// CreditService applies manual admin credits: one commit covering the balance
// increment and the approved admin_credit ledger record.
type CreditService struct {
	store    store.Store
	accounts *AccountService
}

func NewCreditService(st store.Store, accounts *AccountService) *CreditService {
	return &CreditService{store: st, accounts: accounts}
}

// CreditAccount adds amount to the account behind displayID. The amount must
// be strictly positive; nothing is written on a failed precondition.
func (s *CreditService) CreditAccount(ctx context.Context, displayID string, amount decimal.Decimal) (models.Transaction, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return models.Transaction{}, err
	}

	accountKey, account, err := s.accounts.FindKeyByDisplayID(ctx, displayID)
	if err != nil {
		return models.Transaction{}, err
	}

	tx := models.Transaction{
		ID:               store.NewKey(),
		AccountDisplayID: account.DisplayID,
		Kind:             domain.TxKindAdminCredit,
		Amount:           amount,
		Method:           domain.MethodAdmin,
		Status:           domain.TxStatusApproved,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.store.Commit(ctx, map[string]any{
		store.Path(store.CollectionUsers, accountKey, "balance"): store.Incr(amount),
		store.Path(store.CollectionTransactions, tx.ID):          tx,
	}); err != nil {
		observability.IncrementSettlement(domain.TxKindAdminCredit, "commit_failed")
		return models.Transaction{}, fmt.Errorf("%w: %v", domain.ErrCommitFailed, err)
	}

	observability.IncrementSettlement(domain.TxKindAdminCredit, "approved")
	zap.L().Info("manual credit applied",
		zap.String("account", account.DisplayID),
		zap.String("amount", amount.String()),
	)
	return tx, nil
}
