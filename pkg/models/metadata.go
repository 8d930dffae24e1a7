package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// MetadataKind tags the value held by a MetadataValue.
type MetadataKind string

const (
	MetadataText    MetadataKind = "text"
	MetadataNumber  MetadataKind = "number"
	MetadataBoolean MetadataKind = "boolean"
	MetadataDate    MetadataKind = "date"
)

// Metadata is the author-defined attribute bag of an item (brand, SKU,
// size, ...).
type Metadata map[string]MetadataValue

// MetadataValue is a tagged union of text, number, boolean and date.
// Only the field matching Kind is meaningful.
type MetadataValue struct {
	Kind   MetadataKind
	Text   string
	Number float64
	Bool   bool
	Date   time.Time
}

func TextValue(s string) MetadataValue { return MetadataValue{Kind: MetadataText, Text: s} }
func NumberValue(f float64) MetadataValue { return MetadataValue{Kind: MetadataNumber, Number: f} }
func BoolValue(b bool) MetadataValue { return MetadataValue{Kind: MetadataBoolean, Bool: b} }
func DateValue(t time.Time) MetadataValue { return MetadataValue{Kind: MetadataDate, Date: t.UTC()} }

type metadataWire struct {
	Type  MetadataKind    `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value as {"type": kind, "value": v}.
func (v MetadataValue) MarshalJSON() ([]byte, error) {
	var (
		raw []byte
		err error
	)
	switch v.Kind {
	case MetadataText:
		raw, err = json.Marshal(v.Text)
	case MetadataNumber:
		raw, err = json.Marshal(v.Number)
	case MetadataBoolean:
		raw, err = json.Marshal(v.Bool)
	case MetadataDate:
		raw, err = json.Marshal(v.Date.Format(time.RFC3339))
	default:
		return nil, fmt.Errorf("unknown metadata kind %q", v.Kind)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(metadataWire{Type: v.Kind, Value: raw})
}

// UnmarshalJSON decodes {"type": kind, "value": v}. A bare JSON scalar is
// accepted too and its kind inferred (strings become text).
func (v *MetadataValue) UnmarshalJSON(data []byte) error {
	var w metadataWire
	if err := json.Unmarshal(data, &w); err != nil || w.Type == "" {
		return v.inferScalar(data)
	}

	var out MetadataValue
	out.Kind = w.Type
	switch w.Type {
	case MetadataText:
		if err := json.Unmarshal(w.Value, &out.Text); err != nil {
			return fmt.Errorf("metadata text: %w", err)
		}
	case MetadataNumber:
		if err := json.Unmarshal(w.Value, &out.Number); err != nil {
			return fmt.Errorf("metadata number: %w", err)
		}
	case MetadataBoolean:
		if err := json.Unmarshal(w.Value, &out.Bool); err != nil {
			return fmt.Errorf("metadata boolean: %w", err)
		}
	case MetadataDate:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return fmt.Errorf("metadata date: %w", err)
		}
		t, err := parseDate(s)
		if err != nil {
			return fmt.Errorf("metadata date: %w", err)
		}
		out.Date = t
	default:
		return fmt.Errorf("unknown metadata kind %q", w.Type)
	}
	*v = out
	return nil
}

func (v *MetadataValue) inferScalar(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case string:
		*v = TextValue(x)
	case float64:
		*v = NumberValue(x)
	case bool:
		*v = BoolValue(x)
	default:
		return fmt.Errorf("unsupported metadata value %s", string(data))
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}
