package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// YAML tags produced by the yaml.v3 resolver.
const (
	tagNull      = "!!null"
	tagBool      = "!!bool"
	tagInt       = "!!int"
	tagFloat     = "!!float"
	tagStr       = "!!str"
	tagMerge     = "!!merge"
	tagMap       = "!!map"
	tagSeq       = "!!seq"
	mergeKey     = "<<"
	maxAliasHops = 64
)

// Parse decodes a single YAML document.
// An empty input yields a null value, the neutral element of Fold.
// Duplicate keys inside one mapping keep the last value and are reported as warnings.
func Parse(data []byte) (*Value, []string, error) {
	var document yaml.Node

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&document); err != nil {
		if errors.Is(err, io.EOF) {
			return Null(), nil, nil
		}

		return nil, nil, err
	}

	var warnings []string

	value, err := fromNode(&document, "", &warnings, 0)
	if err != nil {
		return nil, nil, err
	}

	return value, warnings, nil
}

//nolint:cyclop // One branch per node kind reads better than a dispatch table.
func fromNode(node *yaml.Node, path string, warnings *[]string, hops int) (*Value, error) {
	if node == nil {
		return Null(), nil
	}

	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Null(), nil
		}

		return fromNode(node.Content[0], path, warnings, hops)
	case yaml.AliasNode:
		if hops >= maxAliasHops {
			return nil, fmt.Errorf("%s: %w", displayPath(path), errAliasDepth)
		}

		return fromNode(node.Alias, path, warnings, hops+1)
	case yaml.ScalarNode:
		return fromScalar(node, path)
	case yaml.SequenceNode:
		seq := Sequence()

		for i, item := range node.Content {
			converted, err := fromNode(item, fmt.Sprintf("%s[%d]", path, i), warnings, hops)
			if err != nil {
				return nil, err
			}

			seq.Append(converted)
		}

		return seq, nil
	case yaml.MappingNode:
		return fromMapping(node, path, warnings, hops)
	default:
		return nil, fmt.Errorf("%s: %w: node kind %d", displayPath(path), errUnsupportedType, node.Kind)
	}
}

func fromMapping(node *yaml.Node, path string, warnings *[]string, hops int) (*Value, error) {
	m := Mapping()

	// Entries pulled in through "<<" never override explicit keys.
	var inherited []*Value

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == mergeKey && keyNode.ShortTag() == tagMerge {
			merged, err := fromNode(valueNode, path, warnings, hops)
			if err != nil {
				return nil, err
			}

			inherited = append(inherited, mergeSources(merged)...)

			continue
		}

		key := keyNode.Value
		childPath := joinPath(path, key)

		converted, err := fromNode(valueNode, childPath, warnings, hops)
		if err != nil {
			return nil, err
		}

		if m.Set(key, converted) {
			*warnings = append(*warnings,
				fmt.Sprintf("line %d: duplicate key %q, the later value wins", keyNode.Line, childPath))
		}
	}

	for _, source := range inherited {
		for _, key := range source.keys {
			if _, exists := m.fields[key]; !exists {
				m.Set(key, source.fields[key].Clone())
			}
		}
	}

	return m, nil
}

// mergeSources flattens the value of a "<<" key into the mappings it refers to.
func mergeSources(v *Value) []*Value {
	switch v.Kind() {
	case KindMapping:
		return []*Value{v}
	case KindSequence:
		var sources []*Value

		for _, item := range v.items {
			if item.Kind() == KindMapping {
				sources = append(sources, item)
			}
		}

		return sources
	default:
		return nil
	}
}

func fromScalar(node *yaml.Node, path string) (*Value, error) {
	switch node.ShortTag() {
	case tagNull:
		return Null(), nil
	case tagBool:
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, fmt.Errorf("%s: %w", displayPath(path), err)
		}

		return Bool(b), nil
	case tagInt:
		var i int64
		if err := node.Decode(&i); err != nil {
			return nil, fmt.Errorf("%s: %w", displayPath(path), err)
		}

		return Int(i), nil
	case tagFloat:
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, fmt.Errorf("%s: %w", displayPath(path), err)
		}

		return Float(f), nil
	default:
		// Strings, timestamps and binary payloads are kept verbatim.
		return String(node.Value), nil
	}
}

// Node renders v as a yaml.Node suitable for encoding or decoding into structs.
func (v *Value) Node() *yaml.Node {
	switch v.Kind() {
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagBool, Value: strconv.FormatBool(v.b)}
	case KindInt:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagInt, Value: strconv.FormatInt(v.i, 10)}
	case KindFloat:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagFloat, Value: yamlFloat(v.f)}
	case KindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagStr, Value: v.s}
	case KindSequence:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: tagSeq}
		for _, item := range v.items {
			node.Content = append(node.Content, item.Node())
		}

		return node
	case KindMapping:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: tagMap}
		for _, key := range v.keys {
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: tagStr, Value: key},
				v.fields[key].Node(),
			)
		}

		return node
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagNull, Value: "null"}
	}
}

// Decode unmarshals v into out using the yaml.v3 struct tags of out.
func (v *Value) Decode(out any) error {
	if v.IsNull() {
		return nil
	}

	return v.Node().Decode(out)
}

func yamlFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	default:
		return formatFloat(f)
	}
}
