package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maxpower-app/wallet-backend/internal/domain"
)

// Account is a wallet member. DisplayID (the public "MP#####" id shown in the
// app) is distinct from the record-store key the account lives under; the key
// is the durable identity and is never shown to users.
type Account struct {
	DisplayID      string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	AvatarRef      string          `json:"avatar,omitempty"`
	Balance        decimal.Decimal `json:"balance"`
	IsActive       bool            `json:"isActive"`
	ReferralCode   string          `json:"referralCode"`
	ReferrerCode   string          `json:"referrerId,omitempty"`
	Role           string          `json:"role"`
	SalaryEligible bool            `json:"salaryEligible,omitempty"`
	JoinedAt       time.Time       `json:"joinedAt"`
}

// Validate rejects malformed account documents. Stored records are loosely
// shaped, so every read goes through this instead of trusting the store.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.DisplayID) == "" {
		return fmt.Errorf("account: missing display id")
	}
	if strings.TrimSpace(a.ReferralCode) == "" {
		return fmt.Errorf("account %s: missing referral code", a.DisplayID)
	}
	if a.Balance.Sign() < 0 {
		return fmt.Errorf("account %s: negative balance %s", a.DisplayID, a.Balance)
	}
	switch a.Role {
	case domain.RoleUser, domain.RoleAdmin, "":
	default:
		return fmt.Errorf("account %s: unknown role %q", a.DisplayID, a.Role)
	}
	return nil
}

// DecodeAccount unmarshals and validates a stored account document.
func DecodeAccount(raw json.RawMessage) (Account, error) {
	var a Account
	if err := json.Unmarshal(raw, &a); err != nil {
		return Account{}, fmt.Errorf("decode account: %w", err)
	}
	if err := a.Validate(); err != nil {
		return Account{}, err
	}
	return a, nil
}

// Transaction is one entry in the append-only ledger: a reported activation
// payment, a withdrawal request, or an admin credit. Status moves
// pending -> approved|rejected exactly once and never regresses.
type Transaction struct {
	ID                  string          `json:"id"`
	AccountDisplayID    string          `json:"userId"`
	Kind                string          `json:"type"`
	Amount              decimal.Decimal `json:"amount"`
	Method              string          `json:"method"`
	CounterpartyNumber  string          `json:"mobileNumber,omitempty"`
	ExternalRef         string          `json:"trxId,omitempty"`
	Status              string          `json:"status"`
	CreatedAt           time.Time       `json:"timestamp"`
	ReferralCodeClaimed string          `json:"referralCodeUsed,omitempty"`
}

// Validate rejects malformed ledger documents.
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.AccountDisplayID) == "" {
		return fmt.Errorf("transaction %s: missing account reference", t.ID)
	}
	if !domain.ValidTxKind(t.Kind) {
		return fmt.Errorf("transaction %s: unknown kind %q", t.ID, t.Kind)
	}
	if t.Amount.Sign() <= 0 {
		return fmt.Errorf("transaction %s: non-positive amount %s", t.ID, t.Amount)
	}
	switch t.Status {
	case domain.TxStatusPending, domain.TxStatusApproved, domain.TxStatusRejected:
	default:
		return fmt.Errorf("transaction %s: unknown status %q", t.ID, t.Status)
	}
	return nil
}

// DecodeTransaction unmarshals and validates a stored ledger document.
func DecodeTransaction(raw json.RawMessage) (Transaction, error) {
	var t Transaction
	if err := json.Unmarshal(raw, &t); err != nil {
		return Transaction{}, fmt.Errorf("decode transaction: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// AdminSettings holds operator-managed values shown to users.
type AdminSettings struct {
	ActivePaymentNumber string `json:"activePaymentNumber"`
}
