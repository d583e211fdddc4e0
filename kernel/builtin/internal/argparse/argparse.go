// Package argparse pulls typed values out of a tool's untyped argument map,
// the shape every provider decodes tool-call arguments into.
package argparse

import (
	"fmt"
	"math"
	"strings"
)

// String reads a string arg by key.
func String(args map[string]any, key string, required bool) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		if required {
			return "", fmt.Errorf("tool: missing required arg %q", key)
		}
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("tool: arg %q must be string", key)
	}
	if required && strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("tool: arg %q must be non-empty", key)
	}
	return value, nil
}

// Bool reads a bool arg by key, defaulting to false.
func Bool(args map[string]any, key string) bool {
	raw, ok := args[key].(bool)
	return ok && raw
}

// Int reads an integer arg by key, accepting any numeric JSON decoding.
func Int(args map[string]any, key string, defaultValue int) (int, error) {
	maxInt := int(^uint(0) >> 1)
	minInt := -maxInt - 1

	raw, ok := args[key]
	if !ok || raw == nil {
		return defaultValue, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		if v > int64(maxInt) || v < int64(minInt) {
			return 0, fmt.Errorf("tool: arg %q is out of int range", key)
		}
		return int(v), nil
	case float32:
		if math.Trunc(float64(v)) != float64(v) {
			return 0, fmt.Errorf("tool: arg %q must be integer", key)
		}
		return int(v), nil
	case float64:
		if math.Trunc(v) != v {
			return 0, fmt.Errorf("tool: arg %q must be integer", key)
		}
		if v > float64(maxInt) || v < float64(minInt) {
			return 0, fmt.Errorf("tool: arg %q is out of int range", key)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("tool: arg %q must be integer", key)
	}
}
