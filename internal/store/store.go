// Package store provides the record-store contract the wallet runs on: a
// generic document store addressed by slash-separated paths with point reads,
// full-collection reads, and atomic multi-path commits supporting additive
// numeric merges. Adapters exist for Redis, Postgres and an in-memory map.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Collections used by the wallet.
const (
	CollectionUsers        = "users"
	CollectionTransactions = "transactions"
	CollectionAdmin        = "admin"

	// SettingsKey is the fixed key of the operator settings document.
	SettingsKey = "settings"
)

// ErrCommit is returned when an atomic commit could not be applied. Partial
// application never occurs.
var ErrCommit = errors.New("commit failed")

// Store is the persistence contract. Paths take the form
// "collection/key" (whole document) or "collection/key/field" (single field).
type Store interface {
	// Get reads one path. The second return is false when nothing is stored
	// there.
	Get(ctx context.Context, path string) (json.RawMessage, bool, error)

	// GetAll reads a full collection keyed by record key.
	GetAll(ctx context.Context, collection string) (map[string]json.RawMessage, error)

	// Commit applies every update atomically: whole-document values replace,
	// field values set a single field, and Delta values additively merge into
	// a numeric field. Either all updates become visible or none do.
	Commit(ctx context.Context, updates map[string]any) error

	// Append stores value under a freshly generated key and returns the key.
	Append(ctx context.Context, collection string, value any) (string, error)
}

// Delta is an additive merge applied to a numeric document field within a
// Commit, mirroring the store's increment primitive.
type Delta struct {
	Amount decimal.Decimal
}

// Incr marks a commit value as an additive merge.
func Incr(amount decimal.Decimal) Delta {
	return Delta{Amount: amount}
}

// NewKey generates a fresh record key.
func NewKey() string {
	return uuid.NewString()
}

// Path joins path segments.
func Path(parts ...string) string {
	return strings.Join(parts, "/")
}

type pathRef struct {
	collection string
	key        string
	field      string
}

func (p pathRef) record() string {
	return p.collection + "/" + p.key
}

func splitPath(path string) (pathRef, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch len(parts) {
	case 2:
		return pathRef{collection: parts[0], key: parts[1]}, nil
	case 3:
		return pathRef{collection: parts[0], key: parts[1], field: parts[2]}, nil
	default:
		return pathRef{}, fmt.Errorf("invalid store path %q", path)
	}
}

func validSegment(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("empty path segment")
	}
	return nil
}
