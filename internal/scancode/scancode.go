// Package scancode parses the QR payloads printed on item tags and storage
// locations.
package scancode

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is what a scanned code identifies.
type Kind string

const (
	KindItem     Kind = "item"
	KindLocation Kind = "location"
)

var (
	ErrEmptyCode   = errors.New("scan code is empty")
	ErrUnknownKind = errors.New("unknown scan code kind")
)

// Code is a parsed scan payload.
type Code struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

func (c Code) String() string {
	return string(c.Kind) + ":" + c.ID
}

// Parse reads "item:<itemId>" or "location:<locationId>". A code without a
// prefix is taken as a bare item id, which is what older tags carry.
func Parse(raw string) (Code, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Code{}, ErrEmptyCode
	}

	prefix, rest, found := strings.Cut(s, ":")
	if !found {
		return Code{Kind: KindItem, ID: s}, nil
	}

	kind := Kind(strings.ToLower(prefix))
	switch kind {
	case KindItem, KindLocation:
	default:
		return Code{}, fmt.Errorf("%w: %q", ErrUnknownKind, prefix)
	}

	id := strings.TrimSpace(rest)
	if id == "" {
		return Code{}, fmt.Errorf("%w: missing %s id", ErrEmptyCode, kind)
	}
	return Code{Kind: kind, ID: id}, nil
}

// ItemID strips the "item:" prefix and returns the item id. Location codes
// are rejected.
func ItemID(raw string) (string, error) {
	c, err := Parse(raw)
	if err != nil {
		return "", err
	}
	if c.Kind != KindItem {
		return "", fmt.Errorf("%w: expected an item code, got %s", ErrUnknownKind, c.Kind)
	}
	return c.ID, nil
}

// ForItem formats the payload printed on an item tag.
func ForItem(itemID string) string {
	return Code{Kind: KindItem, ID: itemID}.String()
}

// ForLocation formats the payload printed on a storage location.
func ForLocation(locationID string) string {
	return Code{Kind: KindLocation, ID: locationID}.String()
}
