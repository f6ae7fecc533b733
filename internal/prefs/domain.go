package prefs

import (
	"errors"
	"strconv"
)

// Kind is the value type a preference accepts.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

// Definition declares a known preference key, its type and default. Only
// declared preferences can be read or written.
type Definition struct {
	Key     string
	Kind    Kind
	Default string
}

// Preference is a key with its effective value, serialized as text.
type Preference struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Known preference keys.
const (
	KeyGlobalDefaultMargin = "globalDefaultMargin"
	KeyKioskGreeting       = "kioskGreeting"
)

// Registry lists every declared preference. Order is the listing order.
var Registry = []Definition{
	{Key: KeyGlobalDefaultMargin, Kind: KindFloat, Default: "0.05"},
	{Key: KeyKioskGreeting, Kind: KindString, Default: ""},
}

// ErrInvalidValue indicates a value that does not parse as the preference's
// declared kind.
var ErrInvalidValue = errors.New("invalid preference value")

// Lookup resolves a declared preference by key.
func Lookup(key string) (Definition, bool) {
	for _, def := range Registry {
		if def.Key == key {
			return def, true
		}
	}
	return Definition{}, false
}

// Validate checks that raw parses as the definition's kind.
func (d Definition) Validate(raw string) error {
	switch d.Kind {
	case KindInt:
		if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
			return ErrInvalidValue
		}
	case KindFloat:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return ErrInvalidValue
		}
	case KindBool:
		if _, err := strconv.ParseBool(raw); err != nil {
			return ErrInvalidValue
		}
	}
	return nil
}
