package config

import (
	"fmt"
	"maps"
	"slices"
)

// fromGo builds a Value from plain Go literals. Map keys are sorted.
func fromGo(in any) (*Value, error) {
	switch typed := in.(type) {
	case nil:
		return Null(), nil
	case *Value:
		return typed.Clone(), nil
	case bool:
		return Bool(typed), nil
	case int:
		return Int(int64(typed)), nil
	case int64:
		return Int(typed), nil
	case float64:
		return Float(typed), nil
	case string:
		return String(typed), nil
	case []string:
		return Strings(typed...), nil
	case []any:
		seq := Sequence()

		for i, item := range typed {
			converted, err := fromGo(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}

			seq.Append(converted)
		}

		return seq, nil
	case map[string]any:
		m := Mapping()

		for _, key := range slices.Sorted(maps.Keys(typed)) {
			converted, err := fromGo(typed[key])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}

			m.Set(key, converted)
		}

		return m, nil
	default:
		return nil, fmt.Errorf("%w: %T", errUnsupportedType, in)
	}
}
