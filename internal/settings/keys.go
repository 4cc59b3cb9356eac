package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownKey is returned for a settings key that does not exist.
var ErrUnknownKey = errors.New("unknown settings key")

// readOnlyKeys may be displayed but not set by hand.
var readOnlyKeys = map[string]bool{"writtenBy": true}

func (s Settings) asMap() (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	return m, nil
}

// Keys returns the settings keys in sorted order.
func Keys() []string {
	m, err := Defaults().asMap()
	if err != nil {
		return nil
	}

	m["writtenBy"] = ""

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Value returns the value stored under key.
func (s Settings) Value(key string) (any, error) {
	m, err := s.asMap()
	if err != nil {
		return nil, err
	}

	if key == "writtenBy" {
		return s.WrittenBy, nil
	}

	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	return v, nil
}

// Set parses raw according to the type of key and stores it.
func (s *Settings) Set(key, raw string) error {
	if readOnlyKeys[key] {
		return fmt.Errorf("%q is managed by muon and cannot be set", key)
	}

	m, err := s.asMap()
	if err != nil {
		return err
	}

	current, ok := m[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	var parsed any

	switch current.(type) {
	case bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s expects true or false, got %q", key, raw)
		}

		parsed = b
	case float64:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s expects an integer, got %q", key, raw)
		}

		parsed = n
	case string:
		parsed = raw
	default:
		// Structured values (editors) are given as JSON.
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return fmt.Errorf("%s expects a JSON value: %w", key, err)
		}
	}

	m[key] = parsed

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	next := *s
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	if err := next.Validate(); err != nil {
		return err
	}

	*s = next.Clone()

	return nil
}
