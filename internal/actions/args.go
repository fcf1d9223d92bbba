package actions

import (
	"fmt"

	"github.com/dokzlo13/dimmerd/internal/units"
)

// Argument decoding for JSON-shaped map[string]any payloads. JSON numbers
// arrive as float64; integers are accepted too for callers that build args
// programmatically.

func floatArg(args map[string]any, key string, fallback float64) (float64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	return toFloat(key, raw)
}

func optionalFloatArg(args map[string]any, key string) (*float64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	v, err := toFloat(key, raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optionalIntArg(args map[string]any, key string) (*int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	v, err := toFloat(key, raw)
	if err != nil {
		return nil, err
	}
	i := int(v)
	return &i, nil
}

func toFloat(key string, raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("field %q: expected number, got %T: %w", key, raw, units.ErrInvalidRange)
	}
}

// targetArg accepts "target" as a single string or a list of strings.
func targetArg(args map[string]any) ([]string, error) {
	raw, ok := args["target"]
	if !ok || raw == nil {
		return nil, fmt.Errorf("field \"target\" is required: %w", units.ErrInvalidRange)
	}

	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		refs := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("field \"target\": expected string, got %T: %w", item, units.ErrInvalidRange)
			}
			refs = append(refs, s)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("field \"target\": expected string or list, got %T: %w", raw, units.ErrInvalidRange)
	}
}
