// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// unsetMarker is the type of [Unset].
type unsetMarker struct{}

func (unsetMarker) String() string { return "<unset>" }

// Unset is the value every key holds after [Namespace.Reset].
var Unset any = unsetMarker{}

// Namespace is a resolved configuration.
//
// Top-level keys are stored in upper case and looked up case-insensitively.
// Nested mapping keys keep the spelling of the source files. A Namespace is safe
// for concurrent use.
type Namespace struct {
	mu        sync.RWMutex
	values    map[string]any
	resolver  *Resolver
	modelName string
}

// NewNamespace returns a detached [Namespace] over values. It has no resolver, so
// [Namespace.Refresh] fails on it.
func NewNamespace(values map[string]any) *Namespace {
	ns := &Namespace{}
	ns.replace(normalize(maps.Clone(values)).(map[string]any))
	return ns
}

// ModelName returns the model selection the namespace was resolved with.
func (ns *Namespace) ModelName() string {
	return ns.modelName
}

// replace swaps the exposed values for raw with canonical top-level keys.
func (ns *Namespace) replace(raw map[string]any) {
	values := make(map[string]any, len(raw))
	for key, value := range raw {
		values[canonical(key)] = value
	}

	ns.mu.Lock()
	ns.values = values
	ns.mu.Unlock()
}

func canonical(key string) string {
	return strings.ToUpper(key)
}

// Keys returns the exposed top-level keys in lexicographic order.
func (ns *Namespace) Keys() []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return slices.Sorted(maps.Keys(ns.values))
}

// Get returns the value of the top-level key, or def when the key is absent.
// A key cleared by [Namespace.Reset] yields nil.
func (ns *Namespace) Get(key string, def any) any {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	value, ok := ns.values[canonical(key)]
	if !ok {
		return def
	}
	if value == Unset {
		return nil
	}
	return value
}

// IsUnset reports whether key was cleared by [Namespace.Reset].
func (ns *Namespace) IsUnset(key string) bool {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.values[canonical(key)] == Unset
}

// Lookup walks path starting at a top-level key. The first segment is matched
// case-insensitively, the remaining segments exactly.
func (ns *Namespace) Lookup(path ...string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}

	ns.mu.RLock()
	defer ns.mu.RUnlock()

	current, ok := ns.values[canonical(path[0])]
	if !ok || current == Unset {
		return nil, false
	}
	for _, segment := range path[1:] {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[segment]; !ok {
			return nil, false
		}
	}

	return current, current != nil
}

// String returns the value at path as a string, or def when it is absent.
// Scalars of other kinds are formatted.
func (ns *Namespace) String(def string, path ...string) string {
	value, ok := ns.Lookup(path...)
	if !ok {
		return def
	}
	switch v := value.(type) {
	case string:
		return v
	case map[string]any, []any:
		return def
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the value at path as a float64, or def when it is absent or not numeric.
func (ns *Namespace) Float(def float64, path ...string) float64 {
	value, ok := ns.Lookup(path...)
	if !ok {
		return def
	}
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Int returns the value at path as an int, or def when it is absent or not integral.
func (ns *Namespace) Int(def int, path ...string) int {
	value, ok := ns.Lookup(path...)
	if !ok {
		return def
	}
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the value at path as a bool, or def when it is absent or not boolean.
func (ns *Namespace) Bool(def bool, path ...string) bool {
	value, ok := ns.Lookup(path...)
	if !ok {
		return def
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// RequireString returns the non-empty string at path or an error wrapping [ErrMissingKey].
func (ns *Namespace) RequireString(path ...string) (string, error) {
	value := ns.String("", path...)
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingKey, dotted(path))
	}
	return value, nil
}

func dotted(path []string) string {
	if len(path) == 0 {
		return ""
	}
	parts := slices.Clone(path)
	parts[0] = canonical(parts[0])
	return strings.Join(parts, ".")
}

// Refresh re-reads project.yml and the model files and replaces the exposed values
// in place. The project cache entry is updated with the fresh base. On error the
// namespace keeps its previous values.
func (ns *Namespace) Refresh(ctx context.Context) error {
	if ns.resolver == nil {
		return fmt.Errorf("refresh configuration: namespace has no resolver")
	}

	merged, err := ns.resolver.resolve(ctx, ns.modelName, true)
	if err != nil {
		return err
	}
	ns.replace(merged)

	return nil
}

// Reset sets every exposed key to [Unset]. The keys remain listed by [Namespace.Keys].
func (ns *Namespace) Reset() {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	for key := range ns.values {
		ns.values[key] = Unset
	}
}

// Map returns a copy of the exposed values with [Unset] keys omitted.
func (ns *Namespace) Map() map[string]any {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	out := make(map[string]any, len(ns.values))
	for key, value := range ns.values {
		if value == Unset {
			continue
		}
		out[key] = value
	}
	return out
}
