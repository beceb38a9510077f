// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"maps"
)

// Merge merges override on top of base and returns the result.
//
// For every key of override, when both sides hold a mapping the two mappings are
// merged recursively; otherwise the override value replaces the base value,
// including a mapping replacing a scalar and vice versa. Neither argument is
// modified.
func Merge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	maps.Copy(out, base)

	for key, value := range override {
		if current, ok := out[key]; ok {
			currentMap, currentOK := current.(map[string]any)
			valueMap, valueOK := value.(map[string]any)
			if currentOK && valueOK {
				out[key] = Merge(currentMap, valueMap)
				continue
			}
		}
		out[key] = value
	}

	return out
}

// normalize converts the map[any]any values yaml.v3 produces for mappings with
// non-string keys into map[string]any so that [Merge] sees every mapping.
func normalize(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for key, value := range v {
			v[key] = normalize(value)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[fmt.Sprint(key)] = normalize(value)
		}
		return out
	case []any:
		for i, value := range v {
			v[i] = normalize(value)
		}
		return v
	default:
		return v
	}
}
