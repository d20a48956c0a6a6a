package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/maxpower-app/wallet-backend/internal/domain"
	"github.com/maxpower-app/wallet-backend/internal/models"
	"github.com/maxpower-app/wallet-backend/internal/observability"
	"github.com/maxpower-app/wallet-backend/internal/referral"
	"github.com/maxpower-app/wallet-backend/internal/store"
)

// SettlementService approves and rejects pending ledger transactions. The
// activation path additionally walks the referral chain and credits upline
// commissions, all inside one atomic commit.
type SettlementService struct {
	store    store.Store
	ledger   *LedgerService
	accounts *AccountService
	resolver *referral.Resolver
	engine   *referral.Engine
}

func NewSettlementService(st store.Store, ledger *LedgerService, accounts *AccountService, resolver *referral.Resolver, engine *referral.Engine) *SettlementService {
	return &SettlementService{
		store:    st,
		ledger:   ledger,
		accounts: accounts,
		resolver: resolver,
		engine:   engine,
	}
}

// SettleActivation approves a pending activation: the transaction becomes
// approved, the account becomes active, and each resolvable upline earns its
// tier amount. Commission computation failure is absorbed; the activation
// itself must still go through. Re-invoking on a settled transaction fails
// with ErrAlreadyProcessed; re-running would double-pay commissions.
func (s *SettlementService) SettleActivation(ctx context.Context, txID string) (models.Transaction, error) {
	tx, err := s.loadPending(ctx, txID, domain.TxKindActivation)
	if err != nil {
		return models.Transaction{}, err
	}

	accountKey, _, err := s.accounts.FindKeyByDisplayID(ctx, tx.AccountDisplayID)
	if err != nil {
		return models.Transaction{}, err
	}

	updates := map[string]any{
		store.Path(store.CollectionTransactions, txID, "status"): domain.TxStatusApproved,
		store.Path(store.CollectionUsers, accountKey, "isActive"): true,
	}

	payouts, err := s.commissions(ctx, tx.ReferralCodeClaimed)
	if err != nil {
		// Deliberate: upline rewards never block the requester's activation.
		observability.IncrementCommissionFailure()
		zap.L().Error("commission computation failed, proceeding with activation only",
			zap.Error(err),
			zap.String("transaction_id", txID),
			zap.String("referral_code", tx.ReferralCodeClaimed),
		)
	} else {
		for uplineKey, amount := range payouts {
			updates[store.Path(store.CollectionUsers, uplineKey, "balance")] = store.Incr(amount)
		}
	}

	if err := s.store.Commit(ctx, updates); err != nil {
		observability.IncrementSettlement(domain.TxKindActivation, "commit_failed")
		return models.Transaction{}, fmt.Errorf("%w: %v", domain.ErrCommitFailed, err)
	}

	observability.IncrementSettlement(domain.TxKindActivation, "approved")
	zap.L().Info("activation settled",
		zap.String("transaction_id", txID),
		zap.String("account", tx.AccountDisplayID),
		zap.Int("commissions_paid", len(payouts)),
	)

	tx.Status = domain.TxStatusApproved
	return tx, nil
}

// SettleWithdrawal approves a pending withdrawal. The balance was already
// debited when the request was submitted, so only the status moves.
func (s *SettlementService) SettleWithdrawal(ctx context.Context, txID string) (models.Transaction, error) {
	tx, err := s.loadPending(ctx, txID, domain.TxKindWithdrawal)
	if err != nil {
		return models.Transaction{}, err
	}

	if err := s.store.Commit(ctx, map[string]any{
		store.Path(store.CollectionTransactions, txID, "status"): domain.TxStatusApproved,
	}); err != nil {
		observability.IncrementSettlement(domain.TxKindWithdrawal, "commit_failed")
		return models.Transaction{}, fmt.Errorf("%w: %v", domain.ErrCommitFailed, err)
	}

	observability.IncrementSettlement(domain.TxKindWithdrawal, "approved")
	zap.L().Info("withdrawal settled",
		zap.String("transaction_id", txID),
		zap.String("account", tx.AccountDisplayID),
	)

	tx.Status = domain.TxStatusApproved
	return tx, nil
}

// Reject marks a pending transaction rejected. A rejected withdrawal refunds
// the amount debited at request time in the same commit.
func (s *SettlementService) Reject(ctx context.Context, txID string) (models.Transaction, error) {
	tx, err := s.loadPending(ctx, txID, "")
	if err != nil {
		return models.Transaction{}, err
	}

	updates := map[string]any{
		store.Path(store.CollectionTransactions, txID, "status"): domain.TxStatusRejected,
	}
	if tx.Kind == domain.TxKindWithdrawal {
		accountKey, _, err := s.accounts.FindKeyByDisplayID(ctx, tx.AccountDisplayID)
		if err != nil {
			return models.Transaction{}, err
		}
		updates[store.Path(store.CollectionUsers, accountKey, "balance")] = store.Incr(tx.Amount)
	}

	if err := s.store.Commit(ctx, updates); err != nil {
		observability.IncrementSettlement(tx.Kind, "commit_failed")
		return models.Transaction{}, fmt.Errorf("%w: %v", domain.ErrCommitFailed, err)
	}

	observability.IncrementSettlement(tx.Kind, "rejected")
	tx.Status = domain.TxStatusRejected
	return tx, nil
}

// loadPending loads a transaction and re-checks its status right before the
// caller commits. Concurrent double-approval is an expected race: the loser
// sees ErrAlreadyProcessed, never a second payout.
func (s *SettlementService) loadPending(ctx context.Context, txID, wantKind string) (models.Transaction, error) {
	tx, err := s.ledger.Get(ctx, txID)
	if err != nil {
		return models.Transaction{}, err
	}
	if wantKind != "" && tx.Kind != wantKind {
		return models.Transaction{}, fmt.Errorf("transaction %s: expected %s, got %s", txID, wantKind, tx.Kind)
	}
	if tx.Status != domain.TxStatusPending {
		return models.Transaction{}, fmt.Errorf("%w: %s is %s", domain.ErrAlreadyProcessed, txID, tx.Status)
	}
	return tx, nil
}

// commissions resolves the upline chain for a claimed referral code and
// computes the per-account payouts. Any failure here, a store error or a
// malformed account record, is a commission-computation failure for the
// caller to absorb. A strict decode is intentional: paying out of a corrupted
// account set is worse than paying nothing.
func (s *SettlementService) commissions(ctx context.Context, claimedCode string) (map[string]decimal.Decimal, error) {
	if claimedCode == "" {
		return nil, nil
	}

	raw, err := s.store.GetAll(ctx, store.CollectionUsers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCommissionComputation, err)
	}
	accounts := make(map[string]models.Account, len(raw))
	for key, doc := range raw {
		account, err := models.DecodeAccount(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCommissionComputation, err)
		}
		accounts[key] = account
	}

	index := referral.BuildIndex(accounts)
	chain := s.resolver.Chain(accounts, index, claimedCode, s.engine.Depth())
	return s.engine.Distribute(chain), nil
}
