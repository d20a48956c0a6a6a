package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpower-app/wallet-backend/internal/domain"
	"github.com/maxpower-app/wallet-backend/internal/referral"
)

const testSecret = "unit-test-secret-0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("TERMINATOR_CODES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, StoreDriverRedis, cfg.StoreDriver)
	assert.Equal(t, "50,20,10", cfg.ReferralTiers)
	assert.True(t, cfg.ActivationFee.IsPositive())
	assert.Equal(t, domain.DefaultTerminatorCodes, cfg.TerminatorCodes)
}

func TestLoadDefaultTerminatorsEndResolution(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("TERMINATOR_CODES", "")

	cfg, err := Load()
	require.NoError(t, err)

	// A fresh install must accept the master onboarding code without any
	// extra configuration, and house codes must never resolve to a payout.
	resolver := referral.NewResolver(cfg.TerminatorCodes)
	assert.True(t, resolver.IsTerminator("MAXPOWER2024"))
	assert.True(t, resolver.IsTerminator("ADMIN"))
}

func TestLoadTerminatorOverride(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("TERMINATOR_CODES", "HOUSE1, house2 ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"HOUSE1", "house2"}, cfg.TerminatorCodes)
}

func TestLoadRejectsShortJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownStoreDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "sqlite")

	_, err := Load()
	assert.Error(t, err)
}
