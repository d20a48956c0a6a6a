package store

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// recordUpdate is the staged change set for one record inside a commit:
// either a whole-document replacement or a set of field merges.
type recordUpdate struct {
	ref     pathRef
	replace json.RawMessage
	fields  map[string]any
}

// stageUpdates groups raw commit updates by record and normalizes values to
// JSON. Validation happens here so adapters can fail before touching storage.
func stageUpdates(updates map[string]any) (map[string]*recordUpdate, error) {
	staged := make(map[string]*recordUpdate, len(updates))
	for path, value := range updates {
		ref, err := splitPath(path)
		if err != nil {
			return nil, err
		}
		if err := validSegment(ref.collection); err != nil {
			return nil, fmt.Errorf("path %q: %w", path, err)
		}
		if err := validSegment(ref.key); err != nil {
			return nil, fmt.Errorf("path %q: %w", path, err)
		}

		ru, ok := staged[ref.record()]
		if !ok {
			ru = &recordUpdate{ref: ref, fields: make(map[string]any)}
			staged[ref.record()] = ru
		}

		if ref.field == "" {
			if _, isDelta := value.(Delta); isDelta {
				return nil, fmt.Errorf("path %q: increment requires a field path", path)
			}
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("path %q: encode document: %w", path, err)
			}
			ru.replace = raw
			continue
		}
		ru.fields[ref.field] = value
	}
	return staged, nil
}

// mergeDoc applies one record's staged update to its current document and
// returns the new document. A replace wins over field merges on the same
// record; increments on absent fields start from zero.
func mergeDoc(current json.RawMessage, ru *recordUpdate) (json.RawMessage, error) {
	base := current
	if ru.replace != nil {
		base = ru.replace
	}

	doc := make(map[string]any)
	if len(base) > 0 {
		if err := json.Unmarshal(base, &doc); err != nil {
			return nil, fmt.Errorf("record %s: not a document: %w", ru.ref.record(), err)
		}
	}

	for field, value := range ru.fields {
		delta, isDelta := value.(Delta)
		if !isDelta {
			normalized, err := normalizeJSON(value)
			if err != nil {
				return nil, fmt.Errorf("record %s field %s: %w", ru.ref.record(), field, err)
			}
			doc[field] = normalized
			continue
		}
		currentVal, err := toDecimal(doc[field])
		if err != nil {
			return nil, fmt.Errorf("record %s field %s: %w", ru.ref.record(), field, err)
		}
		doc[field] = currentVal.Add(delta.Amount).String()
	}

	return json.Marshal(doc)
}

// normalizeJSON round-trips a Go value through JSON so stored documents only
// ever contain JSON-native types.
func normalizeJSON(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return out, nil
}

func toDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("field is not numeric: %q", v)
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("field is not numeric: %q", v)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("field is not numeric: %T", value)
	}
}
