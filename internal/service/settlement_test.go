package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpower-app/wallet-backend/internal/domain"
	"github.com/maxpower-app/wallet-backend/internal/models"
	"github.com/maxpower-app/wallet-backend/internal/store"
)

func TestSettleActivationPaysTierCommissions(t *testing.T) {
	f := newFixture(t)
	txID := seedReferralChain(t, f)
	ctx := context.Background()

	tx, err := f.settle.SettleActivation(ctx, txID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusApproved, tx.Status)

	// Dave is active, the ledger record moved, and each tier was paid once.
	assert.True(t, getAccount(t, f, "key-dave").IsActive)
	assert.Equal(t, domain.TxStatusApproved, getTransaction(t, f, txID).Status)
	assert.True(t, getAccount(t, f, "key-alice").Balance.Equal(decimal.NewFromInt(50)))
	assert.True(t, getAccount(t, f, "key-bob").Balance.Equal(decimal.NewFromInt(25)), "tier 2 adds to the existing balance")
	assert.True(t, getAccount(t, f, "key-carol").Balance.Equal(decimal.NewFromInt(10)))
}

func TestSettleActivationAlreadyProcessed(t *testing.T) {
	f := newFixture(t)
	txID := seedReferralChain(t, f)
	ctx := context.Background()

	_, err := f.settle.SettleActivation(ctx, txID)
	require.NoError(t, err)

	// A second approval must not double-pay.
	_, err = f.settle.SettleActivation(ctx, txID)
	require.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.True(t, getAccount(t, f, "key-alice").Balance.Equal(decimal.NewFromInt(50)))
}

func TestSettleActivationUnknownTransaction(t *testing.T) {
	f := newFixture(t)

	_, err := f.settle.SettleActivation(context.Background(), "tx-nope")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestSettleActivationUnknownAccount(t *testing.T) {
	f := newFixture(t)
	seedTransaction(t, f, "tx-orphan", models.Transaction{
		AccountDisplayID: "MP99999",
		Kind:             domain.TxKindActivation,
		Amount:           decimal.NewFromInt(100),
		Method:           domain.MethodBkash,
		Status:           domain.TxStatusPending,
	})

	_, err := f.settle.SettleActivation(context.Background(), "tx-orphan")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	// The transaction stays pending for a later retry.
	assert.Equal(t, domain.TxStatusPending, getTransaction(t, f, "tx-orphan").Status)
}

func TestSettleActivationKindMismatch(t *testing.T) {
	f := newFixture(t)
	seedAccount(t, f, "key-eve", models.Account{
		DisplayID: "MP10005", Name: "Eve", Balance: decimal.NewFromInt(100),
		IsActive: true, ReferralCode: "EVE001",
	})
	seedTransaction(t, f, "tx-withdraw", models.Transaction{
		AccountDisplayID: "MP10005",
		Kind:             domain.TxKindWithdrawal,
		Amount:           decimal.NewFromInt(40),
		Method:           domain.MethodNagad,
		Status:           domain.TxStatusPending,
	})

	_, err := f.settle.SettleActivation(context.Background(), "tx-withdraw")
	assert.Error(t, err)
	assert.Equal(t, domain.TxStatusPending, getTransaction(t, f, "tx-withdraw").Status)
}

func TestSettleActivationTerminatorCodeNoCommissions(t *testing.T) {
	f := newFixture(t)
	seedAccount(t, f, "key-first", models.Account{
		DisplayID: "MP20001", Name: "First", Balance: decimal.Zero,
		IsActive: false, ReferralCode: "FIRST1", ReferrerCode: "MAXPOWER2024",
	})
	seedTransaction(t, f, "tx-first", models.Transaction{
		AccountDisplayID:    "MP20001",
		Kind:                domain.TxKindActivation,
		Amount:              decimal.NewFromInt(100),
		Method:              domain.MethodBkash,
		Status:              domain.TxStatusPending,
		ReferralCodeClaimed: "MAXPOWER2024",
	})

	_, err := f.settle.SettleActivation(context.Background(), "tx-first")
	require.NoError(t, err)

	first := getAccount(t, f, "key-first")
	assert.True(t, first.IsActive)
	assert.True(t, first.Balance.Equal(decimal.Zero), "a master-code activation pays nobody")
}

func TestSettleActivationCyclicChainSumsPayouts(t *testing.T) {
	f := newFixture(t)
	// alice and bob refer each other; dave claims alice.
	seedAccount(t, f, "key-alice", models.Account{
		DisplayID: "MP10001", Name: "Alice", Balance: decimal.Zero,
		IsActive: true, ReferralCode: "ALICE1", ReferrerCode: "BOB001",
	})
	seedAccount(t, f, "key-bob", models.Account{
		DisplayID: "MP10002", Name: "Bob", Balance: decimal.Zero,
		IsActive: true, ReferralCode: "BOB001", ReferrerCode: "ALICE1",
	})
	seedAccount(t, f, "key-dave", models.Account{
		DisplayID: "MP10004", Name: "Dave", Balance: decimal.Zero,
		IsActive: false, ReferralCode: "DAVE01",
	})
	seedTransaction(t, f, "tx-cycle", models.Transaction{
		AccountDisplayID:    "MP10004",
		Kind:                domain.TxKindActivation,
		Amount:              decimal.NewFromInt(100),
		Method:              domain.MethodBkash,
		Status:              domain.TxStatusPending,
		ReferralCodeClaimed: "ALICE1",
	})

	_, err := f.settle.SettleActivation(context.Background(), "tx-cycle")
	require.NoError(t, err)

	// Alice sits at tiers 1 and 3 of her own cycle: 50 + 10.
	assert.True(t, getAccount(t, f, "key-alice").Balance.Equal(decimal.NewFromInt(60)))
	assert.True(t, getAccount(t, f, "key-bob").Balance.Equal(decimal.NewFromInt(20)))
}

func TestSettleActivationAbsorbsCommissionFailure(t *testing.T) {
	f := newFixture(t)
	txID := seedReferralChain(t, f)
	ctx := context.Background()

	// A corrupt account document makes the commission pass fail outright.
	require.NoError(t, f.store.Commit(ctx, map[string]any{
		store.Path(store.CollectionUsers, "key-corrupt"): map[string]any{"name": "ghost"},
	}))

	tx, err := f.settle.SettleActivation(ctx, txID)
	require.NoError(t, err, "activation itself must still go through")
	assert.Equal(t, domain.TxStatusApproved, tx.Status)
	assert.True(t, getAccount(t, f, "key-dave").IsActive)

	// Nobody was paid.
	assert.True(t, getAccount(t, f, "key-alice").Balance.Equal(decimal.Zero))
	assert.True(t, getAccount(t, f, "key-bob").Balance.Equal(decimal.NewFromInt(5)))
}

func TestSettleActivationCommitFailure(t *testing.T) {
	f := newFixture(t)
	txID := seedReferralChain(t, f)

	f.store.FailNextCommit(errors.New("connection reset"))
	_, err := f.settle.SettleActivation(context.Background(), txID)
	require.ErrorIs(t, err, domain.ErrCommitFailed)

	// Nothing applied: still pending, inactive, unpaid.
	assert.Equal(t, domain.TxStatusPending, getTransaction(t, f, txID).Status)
	assert.False(t, getAccount(t, f, "key-dave").IsActive)
	assert.True(t, getAccount(t, f, "key-alice").Balance.Equal(decimal.Zero))
}

func TestSettleWithdrawalMovesStatusOnly(t *testing.T) {
	f := newFixture(t)
	seedAccount(t, f, "key-eve", models.Account{
		DisplayID: "MP10005", Name: "Eve", Balance: decimal.NewFromInt(60),
		IsActive: true, ReferralCode: "EVE001",
	})
	seedTransaction(t, f, "tx-withdraw", models.Transaction{
		AccountDisplayID: "MP10005",
		Kind:             domain.TxKindWithdrawal,
		Amount:           decimal.NewFromInt(40),
		Method:           domain.MethodNagad,
		Status:           domain.TxStatusPending,
	})

	tx, err := f.settle.SettleWithdrawal(context.Background(), "tx-withdraw")
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusApproved, tx.Status)

	// The debit happened at request time; approval must not touch the balance.
	assert.True(t, getAccount(t, f, "key-eve").Balance.Equal(decimal.NewFromInt(60)))
}

func TestRejectWithdrawalRefundsDebit(t *testing.T) {
	f := newFixture(t)
	seedAccount(t, f, "key-eve", models.Account{
		DisplayID: "MP10005", Name: "Eve", Balance: decimal.NewFromInt(60),
		IsActive: true, ReferralCode: "EVE001",
	})
	seedTransaction(t, f, "tx-withdraw", models.Transaction{
		AccountDisplayID: "MP10005",
		Kind:             domain.TxKindWithdrawal,
		Amount:           decimal.NewFromInt(40),
		Method:           domain.MethodNagad,
		Status:           domain.TxStatusPending,
	})

	tx, err := f.settle.Reject(context.Background(), "tx-withdraw")
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusRejected, tx.Status)
	assert.True(t, getAccount(t, f, "key-eve").Balance.Equal(decimal.NewFromInt(100)), "rejection refunds the request-time debit")
}

func TestRejectActivationLeavesAccountUntouched(t *testing.T) {
	f := newFixture(t)
	txID := seedReferralChain(t, f)

	tx, err := f.settle.Reject(context.Background(), txID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusRejected, tx.Status)

	dave := getAccount(t, f, "key-dave")
	assert.False(t, dave.IsActive)
	assert.True(t, dave.Balance.Equal(decimal.Zero))
	assert.True(t, getAccount(t, f, "key-alice").Balance.Equal(decimal.Zero))
}

func TestRejectAlreadyProcessed(t *testing.T) {
	f := newFixture(t)
	txID := seedReferralChain(t, f)
	ctx := context.Background()

	_, err := f.settle.Reject(ctx, txID)
	require.NoError(t, err)
	_, err = f.settle.Reject(ctx, txID)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
}
