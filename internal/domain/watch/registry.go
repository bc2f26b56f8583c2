package watch

import (
	"errors"
	"fmt"

	"github.com/oshokin/docker-image-updater/internal/config"
)

// Keys recognised inside a group.
const (
	keyImages   = "images"
	keyCommands = "commands"
)

// ErrInvalidConfig is matched by every *ValidationError.
var ErrInvalidConfig = errors.New("invalid watch configuration")

// ValidationError describes a malformed part of the "watch" section.
type ValidationError struct {
	// Path is the dotted location of the offending value.
	Path string
	// Message explains what was expected.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig, e.Path, e.Message)
}

// Is lets errors.Is match ErrInvalidConfig.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Build validates the "watch" section of a merged document and returns its groups
// in configuration order. A missing or null section yields no groups.
func Build(merged *config.Value) ([]*Group, error) {
	section, ok := merged.Get(config.SectionWatch)
	if !ok || section.IsNull() {
		return nil, nil
	}

	if section.Kind() != config.KindMapping {
		return nil, invalid(config.SectionWatch, "should be a mapping, got %s", section.Kind())
	}

	groups := make([]*Group, 0, section.Len())

	for _, name := range section.Keys() {
		definition, _ := section.Get(name)

		group, err := buildGroup(name, definition)
		if err != nil {
			return nil, err
		}

		groups = append(groups, group)
	}

	return groups, nil
}

// buildGroup validates one group. A null group is the same as an empty one.
func buildGroup(name string, definition *config.Value) (*Group, error) {
	path := config.SectionWatch + "." + name

	group := &Group{
		Name:     name,
		Images:   []string{},
		Commands: []string{},
	}

	if definition.IsNull() {
		return group, nil
	}

	if definition.Kind() != config.KindMapping {
		return nil, invalid(path, "should be a mapping, got %s", definition.Kind())
	}

	images, err := stringList(definition, path, keyImages)
	if err != nil {
		return nil, err
	}

	commands, err := stringList(definition, path, keyCommands)
	if err != nil {
		return nil, err
	}

	group.Images = distinct(images)
	group.Commands = commands

	return group, nil
}

// stringList reads an optional sequence of scalars stored under key.
func stringList(definition *config.Value, groupPath, key string) ([]string, error) {
	path := groupPath + "." + key

	field, ok := definition.Get(key)
	if !ok || field.IsNull() {
		return []string{}, nil
	}

	if field.Kind() != config.KindSequence {
		return nil, invalid(path, "should be a sequence, got %s", field.Kind())
	}

	result := make([]string, 0, field.Len())

	for i, item := range field.Items() {
		if !item.Kind().IsScalar() || item.IsNull() {
			return nil, invalid(fmt.Sprintf("%s[%d]", path, i), "should be a string, got %s", item.Kind())
		}

		result = append(result, item.Text())
	}

	return result, nil
}

// distinct drops repeated references, keeping the first occurrence.
func distinct(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	result := make([]string, 0, len(refs))

	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}

		seen[ref] = struct{}{}
		result = append(result, ref)
	}

	return result
}

func invalid(path, format string, args ...any) *ValidationError {
	return &ValidationError{
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	}
}
