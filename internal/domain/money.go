package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a user-supplied monetary amount. Amounts are
// currency-agnostic decimals (Taka in the original deployment) and must be
// finite and strictly positive.
func ParseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return d, ValidateAmount(d)
}

// ValidateAmount enforces the positive-amount rule shared by credits,
// withdrawals and tier payouts.
func ValidateAmount(d decimal.Decimal) error {
	if d.Sign() <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, d.String())
	}
	return nil
}
