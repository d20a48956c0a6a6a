// Package referral resolves upward referral chains and computes tiered
// commission payouts along them.
package referral

import (
	"strings"

	"github.com/maxpower-app/wallet-backend/internal/models"
)

// Resolver walks the referral graph upward from a claimed code. Codes are
// case-insensitive; terminator codes (master/house codes) end the walk
// without resolving to a payable account.
type Resolver struct {
	terminators map[string]struct{}
}

// NewResolver builds a resolver with the given terminator codes.
func NewResolver(terminatorCodes []string) *Resolver {
	terminators := make(map[string]struct{}, len(terminatorCodes))
	for _, code := range terminatorCodes {
		terminators[normalizeCode(code)] = struct{}{}
	}
	return &Resolver{terminators: terminators}
}

// IsTerminator reports whether code ends chain resolution.
func (r *Resolver) IsTerminator(code string) bool {
	_, ok := r.terminators[normalizeCode(code)]
	return ok
}

// BuildIndex maps case-folded referral codes to internal account keys in one
// pass over the full account set. Rebuilt per settlement; lookups afterwards
// are O(1).
func BuildIndex(accounts map[string]models.Account) map[string]string {
	index := make(map[string]string, len(accounts))
	for key, account := range accounts {
		if account.ReferralCode == "" {
			continue
		}
		index[normalizeCode(account.ReferralCode)] = key
	}
	return index
}

// Chain resolves the ordered upward chain of account keys starting from
// startCode, nearest upline first, visiting at most maxTiers accounts.
// An unresolvable code truncates the chain silently; the tier bound makes
// cyclic graphs terminate (a cycle may still revisit a key within the bound,
// which the commission engine handles by summing).
func (r *Resolver) Chain(accounts map[string]models.Account, index map[string]string, startCode string, maxTiers int) []string {
	chain := make([]string, 0, maxTiers)
	code := normalizeCode(startCode)

	for len(chain) < maxTiers {
		if code == "" || r.IsTerminator(code) {
			break
		}
		key, ok := index[code]
		if !ok {
			break
		}
		chain = append(chain, key)
		code = normalizeCode(accounts[key].ReferrerCode)
	}
	return chain
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
