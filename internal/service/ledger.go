package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/maxpower-app/wallet-backend/internal/domain"
	"github.com/maxpower-app/wallet-backend/internal/models"
	"github.com/maxpower-app/wallet-backend/internal/store"
)

// LedgerService reads and appends the append-only transaction log.
type LedgerService struct {
	store store.Store
}

func NewLedgerService(st store.Store) *LedgerService {
	return &LedgerService{store: st}
}

// Get loads one transaction by id.
func (s *LedgerService) Get(ctx context.Context, txID string) (models.Transaction, error) {
	raw, ok, err := s.store.Get(ctx, store.Path(store.CollectionTransactions, txID))
	if err != nil {
		return models.Transaction{}, fmt.Errorf("load transaction %s: %w", txID, err)
	}
	if !ok {
		return models.Transaction{}, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, txID)
	}
	tx, err := models.DecodeTransaction(raw)
	if err != nil {
		return models.Transaction{}, err
	}
	tx.ID = txID
	return tx, nil
}

// Append stores a new transaction under a fresh key and returns it with the
// key filled in.
func (s *LedgerService) Append(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return models.Transaction{}, err
	}
	key, err := s.store.Append(ctx, store.CollectionTransactions, tx)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	tx.ID = key
	return tx, nil
}

// ListByStatus returns transactions with the given status, optionally
// filtered by kind, newest first. Malformed records are logged and skipped so
// one bad document cannot take down the admin queue.
func (s *LedgerService) ListByStatus(ctx context.Context, status, kind string) ([]models.Transaction, error) {
	return s.list(ctx, func(tx models.Transaction) bool {
		if tx.Status != status {
			return false
		}
		return kind == "" || tx.Kind == kind
	})
}

// ListForAccount returns an account's transaction history, newest first.
func (s *LedgerService) ListForAccount(ctx context.Context, displayID string) ([]models.Transaction, error) {
	return s.list(ctx, func(tx models.Transaction) bool {
		return tx.AccountDisplayID == displayID
	})
}

// PendingCounts returns the pending backlog per kind.
func (s *LedgerService) PendingCounts(ctx context.Context) (map[string]int, error) {
	pending, err := s.ListByStatus(ctx, domain.TxStatusPending, "")
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, tx := range pending {
		counts[tx.Kind]++
	}
	return counts, nil
}

func (s *LedgerService) list(ctx context.Context, keep func(models.Transaction) bool) ([]models.Transaction, error) {
	raw, err := s.store.GetAll(ctx, store.CollectionTransactions)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	out := make([]models.Transaction, 0, len(raw))
	for key, doc := range raw {
		tx, err := models.DecodeTransaction(doc)
		if err != nil {
			zap.L().Warn("skipping malformed ledger record", zap.String("key", key), zap.Error(err))
			continue
		}
		tx.ID = key
		if keep(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
