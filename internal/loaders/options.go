package loaders

import (
	"fmt"
	"math"
	"strconv"
)

// Options are the per-step options of a config step. Values arrive as
// decoded YAML or JSON, so numbers may be any of the Go numeric kinds.
type Options map[string]any

// String returns the string option key or def when it is unset.
func (o Options) String(key, def string) (string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %s: expected string, got %T", key, v)
	}
	return s, nil
}

// Int returns the integer option key. ok is false when it is unset.
func (o Options) Int(key string) (n int, ok bool, err error) {
	v, ok := o[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch x := v.(type) {
	case int:
		return x, true, nil
	case int64:
		return int(x), true, nil
	case uint64:
		if x > math.MaxInt {
			return 0, true, fmt.Errorf("option %s: %d out of range", key, x)
		}
		return int(x), true, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, true, fmt.Errorf("option %s: expected integer, got %v", key, x)
		}
		return int(x), true, nil
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, true, fmt.Errorf("option %s: expected integer, got %q", key, x)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("option %s: expected integer, got %T", key, v)
	}
}

// Bool returns the boolean option key. ok is false when it is unset or not a bool.
func (o Options) Bool(key string) (b bool, ok bool) {
	b, ok = o[key].(bool)
	return b, ok
}
