package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/maxpower-app/wallet-backend/internal/domain"
	"github.com/maxpower-app/wallet-backend/internal/models"
	"github.com/maxpower-app/wallet-backend/internal/referral"
	"github.com/maxpower-app/wallet-backend/internal/store"
)

// AccountService owns account provisioning and the display-id / referral-code
// lookups the workflows depend on. Lookups scan the full account set; at the
// expected volumes this is the simplest-correct approach (see resolver index
// notes), with a maintained secondary index as a future optimization.
type AccountService struct {
	store    store.Store
	resolver *referral.Resolver
}

func NewAccountService(st store.Store, resolver *referral.Resolver) *AccountService {
	return &AccountService{store: st, resolver: resolver}
}

var ErrAccountExists = errors.New("account already exists")

// ProvisionRequest carries the profile fields for a new account. The internal
// key comes from the external identity system and is supplied by the caller.
type ProvisionRequest struct {
	Key   string
	Name  string
	Email string
	Phone string
}

// Provision creates an inactive zero-balance account with a generated display
// id and referral code.
func (s *AccountService) Provision(ctx context.Context, req ProvisionRequest) (models.Account, error) {
	if strings.TrimSpace(req.Key) == "" {
		return models.Account{}, fmt.Errorf("account key is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return models.Account{}, fmt.Errorf("name is required")
	}

	if _, ok, err := s.store.Get(ctx, store.Path(store.CollectionUsers, req.Key)); err != nil {
		return models.Account{}, fmt.Errorf("check existing account: %w", err)
	} else if ok {
		return models.Account{}, ErrAccountExists
	}

	displayID, err := s.uniqueDisplayID(ctx)
	if err != nil {
		return models.Account{}, err
	}

	account := models.Account{
		DisplayID:    displayID,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Balance:      decimal.Zero,
		IsActive:     false,
		ReferralCode: newReferralCode(),
		Role:         domain.RoleUser,
		JoinedAt:     time.Now().UTC(),
	}
	if err := s.store.Commit(ctx, map[string]any{
		store.Path(store.CollectionUsers, req.Key): account,
	}); err != nil {
		return models.Account{}, fmt.Errorf("%w: %v", domain.ErrCommitFailed, err)
	}
	return account, nil
}

// GetByKey loads the account stored under an internal key.
func (s *AccountService) GetByKey(ctx context.Context, key string) (models.Account, error) {
	raw, ok, err := s.store.Get(ctx, store.Path(store.CollectionUsers, key))
	if err != nil {
		return models.Account{}, fmt.Errorf("load account: %w", err)
	}
	if !ok {
		return models.Account{}, domain.ErrAccountNotFound
	}
	return models.DecodeAccount(raw)
}

// FindKeyByDisplayID resolves a public display id ("MP92834") to the internal
// record key plus the account itself. Malformed records are skipped; a
// missing match is ErrAccountNotFound.
func (s *AccountService) FindKeyByDisplayID(ctx context.Context, displayID string) (string, models.Account, error) {
	displayID = strings.TrimSpace(displayID)
	if displayID == "" {
		return "", models.Account{}, domain.ErrAccountNotFound
	}

	raw, err := s.store.GetAll(ctx, store.CollectionUsers)
	if err != nil {
		return "", models.Account{}, fmt.Errorf("scan accounts: %w", err)
	}
	for key, doc := range raw {
		account, err := models.DecodeAccount(doc)
		if err != nil {
			zap.L().Warn("skipping malformed account record", zap.String("key", key), zap.Error(err))
			continue
		}
		if strings.EqualFold(account.DisplayID, displayID) {
			return key, account, nil
		}
	}
	return "", models.Account{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, displayID)
}

// ReferralCheck is the result of validating a referral code before an
// activation submission.
type ReferralCheck struct {
	Code         string `json:"code"`
	Terminator   bool   `json:"terminator"`
	UplineName   string `json:"uplineName,omitempty"`
	UplineActive bool   `json:"uplineActive"`
}

// CheckReferralCode resolves a code to its upline. Terminator codes are
// reported as valid without an upline; unknown codes are ErrAccountNotFound.
func (s *AccountService) CheckReferralCode(ctx context.Context, code string) (ReferralCheck, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ReferralCheck{}, fmt.Errorf("%w: empty referral code", domain.ErrAccountNotFound)
	}
	if s.resolver.IsTerminator(code) {
		return ReferralCheck{Code: code, Terminator: true}, nil
	}

	accounts, err := s.decodeAll(ctx)
	if err != nil {
		return ReferralCheck{}, err
	}
	index := referral.BuildIndex(accounts)
	key, ok := index[code]
	if !ok {
		return ReferralCheck{}, fmt.Errorf("%w: referral code %s", domain.ErrAccountNotFound, code)
	}
	upline := accounts[key]
	return ReferralCheck{Code: code, UplineName: upline.Name, UplineActive: upline.IsActive}, nil
}

// ReferralCount counts accounts that claimed the given code at activation.
func (s *AccountService) ReferralCount(ctx context.Context, code string) (int, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return 0, nil
	}
	accounts, err := s.decodeAll(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, account := range accounts {
		if strings.EqualFold(account.ReferrerCode, code) {
			count++
		}
	}
	return count, nil
}

func (s *AccountService) decodeAll(ctx context.Context) (map[string]models.Account, error) {
	raw, err := s.store.GetAll(ctx, store.CollectionUsers)
	if err != nil {
		return nil, fmt.Errorf("scan accounts: %w", err)
	}
	accounts := make(map[string]models.Account, len(raw))
	for key, doc := range raw {
		account, err := models.DecodeAccount(doc)
		if err != nil {
			zap.L().Warn("skipping malformed account record", zap.String("key", key), zap.Error(err))
			continue
		}
		accounts[key] = account
	}
	return accounts, nil
}

// uniqueDisplayID generates display ids until one is unused. Display ids are
// globally unique and immutable once assigned.
func (s *AccountService) uniqueDisplayID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		candidate := newDisplayID()
		_, _, err := s.FindKeyByDisplayID(ctx, candidate)
		if errors.Is(err, domain.ErrAccountNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("could not allocate a unique display id")
}

// newDisplayID generates a public "MP#####" id.
func newDisplayID() string {
	id := uuid.New()
	n := binary.BigEndian.Uint32(id[:4])
	return fmt.Sprintf("MP%05d", 10000+n%90000)
}

// newReferralCode generates a short shareable code.
func newReferralCode() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:6])
}
