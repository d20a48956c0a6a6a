package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maxpower-app/wallet-backend/internal/domain"
	"github.com/maxpower-app/wallet-backend/internal/models"
	"github.com/maxpower-app/wallet-backend/internal/store"
)

// SettingsService manages operator settings, currently the receiving mobile
// number users send activation payments to.
type SettingsService struct {
	store store.Store
}

func NewSettingsService(st store.Store) *SettingsService {
	return &SettingsService{store: st}
}

// Get returns the current settings document; absent settings are empty, not
// an error.
func (s *SettingsService) Get(ctx context.Context) (models.AdminSettings, error) {
	raw, ok, err := s.store.Get(ctx, store.Path(store.CollectionAdmin, store.SettingsKey))
	if err != nil {
		return models.AdminSettings{}, fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		return models.AdminSettings{}, nil
	}
	var settings models.AdminSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return models.AdminSettings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

// SetPaymentNumber updates the active receiving number.
func (s *SettingsService) SetPaymentNumber(ctx context.Context, number string) error {
	number = strings.TrimSpace(number)
	if number == "" {
		return fmt.Errorf("payment number is required")
	}
	if err := s.store.Commit(ctx, map[string]any{
		store.Path(store.CollectionAdmin, store.SettingsKey, "activePaymentNumber"): number,
	}); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCommitFailed, err)
	}
	return nil
}
