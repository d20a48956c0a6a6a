package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is one level of the referral commission structure. Level 1 is the
// nearest upline of a newly activated account.
type Tier struct {
	Level  int             `json:"level"`
	Amount decimal.Decimal `json:"amount"`
}

// TierTable is the ordered, fixed commission configuration consulted
// top-down during distribution. Its length bounds the referral chain walk.
type TierTable []Tier

// DefaultTierTable returns the stock three-level structure.
func DefaultTierTable() TierTable {
	return TierTable{
		{Level: 1, Amount: decimal.NewFromInt(50)},
		{Level: 2, Amount: decimal.NewFromInt(20)},
		{Level: 3, Amount: decimal.NewFromInt(10)},
	}
}

// ParseTierTable builds a table from a comma-separated amount list
// ("50,20,10"); levels are assigned by position.
func ParseTierTable(raw string) (TierTable, error) {
	parts := strings.Split(raw, ",")
	table := make(TierTable, 0, len(parts))
	for i, part := range parts {
		amount, err := decimal.NewFromString(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("tier %d: invalid amount %q", i+1, part)
		}
		if amount.Sign() <= 0 {
			return nil, fmt.Errorf("tier %d: amount must be positive, got %s", i+1, amount)
		}
		table = append(table, Tier{Level: i + 1, Amount: amount})
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("tier table must not be empty")
	}
	return table, nil
}

// Total returns the sum of all tier amounts, the maximum commission one
// activation can distribute.
func (t TierTable) Total() decimal.Decimal {
	total := decimal.Zero
	for _, tier := range t {
		total = total.Add(tier.Amount)
	}
	return total
}
