package referral

import (
	"github.com/shopspring/decimal"

	"github.com/maxpower-app/wallet-backend/internal/domain"
)

// Engine turns a resolved upline chain into per-account payouts using a fixed
// tier table.
type Engine struct {
	tiers domain.TierTable
}

// NewEngine builds an engine over the given tier table.
func NewEngine(tiers domain.TierTable) *Engine {
	return &Engine{tiers: tiers}
}

// Depth returns the number of tiers, the bound for chain resolution.
func (e *Engine) Depth() int {
	return len(e.tiers)
}

// Distribute maps each chain account key to its payout: tier i of the chain
// (nearest upline first) earns the tier-i amount. A chain shorter than the
// table yields fewer payouts. If a key appears at several tiers (cyclic
// graph) its payouts are summed, never overwritten.
func (e *Engine) Distribute(chain []string) map[string]decimal.Decimal {
	payouts := make(map[string]decimal.Decimal, len(chain))
	for i, key := range chain {
		if i >= len(e.tiers) {
			break
		}
		payouts[key] = payouts[key].Add(e.tiers[i].Amount)
	}
	return payouts
}
