package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is a mutex-guarded in-process Store. It backs the "memory" driver
// for local development and is the fixture for service tests; commits are
// all-or-nothing and a one-shot failure can be injected to exercise
// commit-failure paths.
type Memory struct {
	mu      sync.Mutex
	records map[string]map[string]json.RawMessage
	failErr error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[string]json.RawMessage)}
}

// FailNextCommit makes the next Commit return err without applying anything.
func (m *Memory) FailNextCommit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *Memory) Get(ctx context.Context, path string) (json.RawMessage, bool, error) {
	ref, err := splitPath(path)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.records[ref.collection][ref.key]
	if !ok {
		return nil, false, nil
	}
	if ref.field == "" {
		return cloneRaw(raw), true, nil
	}

	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("record %s: not a document: %w", ref.record(), err)
	}
	fieldRaw, ok := doc[ref.field]
	if !ok {
		return nil, false, nil
	}
	return cloneRaw(fieldRaw), true, nil
}

func (m *Memory) GetAll(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]json.RawMessage, len(m.records[collection]))
	for key, raw := range m.records[collection] {
		out[key] = cloneRaw(raw)
	}
	return out, nil
}

func (m *Memory) Commit(ctx context.Context, updates map[string]any) error {
	staged, err := stageUpdates(updates)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommit, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		err := m.failErr
		m.failErr = nil
		return fmt.Errorf("%w: %v", ErrCommit, err)
	}

	// Merge everything first so a bad update leaves the store untouched.
	merged := make(map[string]map[string]json.RawMessage, len(staged))
	for _, ru := range staged {
		doc, err := mergeDoc(m.records[ru.ref.collection][ru.ref.key], ru)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCommit, err)
		}
		if merged[ru.ref.collection] == nil {
			merged[ru.ref.collection] = make(map[string]json.RawMessage)
		}
		merged[ru.ref.collection][ru.ref.key] = doc
	}

	for collection, docs := range merged {
		if m.records[collection] == nil {
			m.records[collection] = make(map[string]json.RawMessage)
		}
		for key, doc := range docs {
			m.records[collection][key] = doc
		}
	}
	return nil
}

func (m *Memory) Append(ctx context.Context, collection string, value any) (string, error) {
	key := NewKey()
	if err := m.Commit(ctx, map[string]any{Path(collection, key): value}); err != nil {
		return "", err
	}
	return key, nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
