package config

import "fmt"

// Merge recursively combines a and b into a new value without touching either input:
//   - mappings are merged key by key, recursing into keys present on both sides;
//   - sequences become their union, keeping the order of a followed by the new items of b;
//   - scalars of the same kind resolve to b.
//
// Values of different kinds fail with a *TypeMismatchError.
func Merge(a, b *Value) (*Value, error) {
	return merge(a, b, "")
}

// Fold merges docs into seed from left to right.
// Nil and null documents (an empty YAML file) are skipped, as is a nil seed.
func Fold(seed *Value, docs ...*Value) (*Value, error) {
	result := seed.Clone()

	for i, doc := range docs {
		if doc.IsNull() {
			continue
		}

		if result.IsNull() {
			result = doc.Clone()
			continue
		}

		merged, err := Merge(result, doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}

		result = merged
	}

	return result, nil
}

func merge(a, b *Value, path string) (*Value, error) {
	if a.Kind() != b.Kind() {
		return nil, &TypeMismatchError{
			Path:  path,
			Left:  a,
			Right: b,
		}
	}

	switch b.Kind() {
	case KindSequence:
		return union(a, b), nil
	case KindMapping:
		result := a.Clone()

		for _, key := range b.keys {
			incoming := b.fields[key]

			existing, ok := result.fields[key]
			if !ok {
				result.Set(key, incoming.Clone())
				continue
			}

			merged, err := merge(existing, incoming, joinPath(path, key))
			if err != nil {
				return nil, err
			}

			result.fields[key] = merged
		}

		return result, nil
	default:
		return b.Clone(), nil
	}
}

// union returns the distinct elements of a and b in first-seen order.
func union(a, b *Value) *Value {
	result := Sequence()

	for _, source := range [...]*Value{a, b} {
		for _, item := range source.items {
			if !containsValue(result.items, item) {
				result.items = append(result.items, item.Clone())
			}
		}
	}

	return result
}

func containsValue(items []*Value, needle *Value) bool {
	for _, item := range items {
		if item.Equal(needle) {
			return true
		}
	}

	return false
}
