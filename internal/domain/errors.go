package domain

import "errors"

// Settlement and credit error taxonomy. Precondition errors abort before any
// mutation; ErrCommitFailed wraps store-level failures and is retryable.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyProcessed    = errors.New("transaction already processed")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrCommitFailed        = errors.New("store commit failed")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAccountInactive     = errors.New("account is not active")

	// ErrCommissionComputation is absorbed by activation settlement and never
	// blocks the activation itself.
	ErrCommissionComputation = errors.New("commission computation failed")
)
