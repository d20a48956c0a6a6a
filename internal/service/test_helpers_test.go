package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/maxpower-app/wallet-backend/internal/domain"
	"github.com/maxpower-app/wallet-backend/internal/models"
	"github.com/maxpower-app/wallet-backend/internal/referral"
	"github.com/maxpower-app/wallet-backend/internal/store"
)

// fixture wires the full service layer over the in-memory store.
type fixture struct {
	store    *store.Memory
	accounts *AccountService
	ledger   *LedgerService
	wallet   *WalletService
	settle   *SettlementService
	credit   *CreditService
	settings *SettingsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := store.NewMemory()
	resolver := referral.NewResolver(domain.DefaultTerminatorCodes)
	engine := referral.NewEngine(domain.DefaultTierTable())

	accounts := NewAccountService(st, resolver)
	ledger := NewLedgerService(st)
	return &fixture{
		store:    st,
		accounts: accounts,
		ledger:   ledger,
		wallet:   NewWalletService(st, accounts, resolver, decimal.NewFromInt(100)),
		settle:   NewSettlementService(st, ledger, accounts, resolver, engine),
		credit:   NewCreditService(st, accounts),
		settings: NewSettingsService(st),
	}
}

func seedAccount(t *testing.T, f *fixture, key string, account models.Account) {
	t.Helper()
	if account.JoinedAt.IsZero() {
		account.JoinedAt = time.Now().UTC()
	}
	err := f.store.Commit(context.Background(), map[string]any{
		store.Path(store.CollectionUsers, key): account,
	})
	require.NoError(t, err)
}

func seedTransaction(t *testing.T, f *fixture, id string, tx models.Transaction) {
	t.Helper()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	err := f.store.Commit(context.Background(), map[string]any{
		store.Path(store.CollectionTransactions, id): tx,
	})
	require.NoError(t, err)
}

func getAccount(t *testing.T, f *fixture, key string) models.Account {
	t.Helper()
	raw, ok, err := f.store.Get(context.Background(), store.Path(store.CollectionUsers, key))
	require.NoError(t, err)
	require.True(t, ok, "account %s not found", key)
	account, err := models.DecodeAccount(raw)
	require.NoError(t, err)
	return account
}

func getTransaction(t *testing.T, f *fixture, id string) models.Transaction {
	t.Helper()
	tx, err := f.ledger.Get(context.Background(), id)
	require.NoError(t, err)
	return tx
}

// seedReferralChain creates dave -> alice -> bob -> carol -> master code, with
// dave inactive holding a pending activation that claimed alice's code.
func seedReferralChain(t *testing.T, f *fixture) (txID string) {
	t.Helper()

	seedAccount(t, f, "key-alice", models.Account{
		DisplayID: "MP10001", Name: "Alice", Balance: decimal.Zero,
		IsActive: true, ReferralCode: "ALICE1", ReferrerCode: "BOB001",
	})
	seedAccount(t, f, "key-bob", models.Account{
		DisplayID: "MP10002", Name: "Bob", Balance: decimal.NewFromInt(5),
		IsActive: true, ReferralCode: "BOB001", ReferrerCode: "CAROL1",
	})
	seedAccount(t, f, "key-carol", models.Account{
		DisplayID: "MP10003", Name: "Carol", Balance: decimal.Zero,
		IsActive: true, ReferralCode: "CAROL1", ReferrerCode: "MAXPOWER2024",
	})
	seedAccount(t, f, "key-dave", models.Account{
		DisplayID: "MP10004", Name: "Dave", Balance: decimal.Zero,
		IsActive: false, ReferralCode: "DAVE01", ReferrerCode: "ALICE1",
	})

	txID = "tx-activation-dave"
	seedTransaction(t, f, txID, models.Transaction{
		AccountDisplayID:    "MP10004",
		Kind:                domain.TxKindActivation,
		Amount:              decimal.NewFromInt(100),
		Method:              domain.MethodBkash,
		CounterpartyNumber:  "01700000000",
		ExternalRef:         "TRX123",
		Status:              domain.TxStatusPending,
		ReferralCodeClaimed: "ALICE1",
	})
	return txID
}
