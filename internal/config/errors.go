package config

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is returned when a configuration source cannot be read or parsed.
	ErrParse = errors.New("load configuration")
	// ErrTypeMismatch is matched by every *TypeMismatchError.
	ErrTypeMismatch = errors.New("incompatible value types")

	// errUnsupportedType is returned for values that have no Kind.
	errUnsupportedType = errors.New("unsupported value type")
	// errAliasDepth guards against alias chains that never reach a value.
	errAliasDepth = errors.New("too many nested aliases")
)

// TypeMismatchError reports two values of different kinds meeting during a merge.
type TypeMismatchError struct {
	// Path is the dotted location of the conflict, empty for the document root.
	Path string
	// Left is the value already accumulated.
	Left *Value
	// Right is the value being merged in.
	Right *Value
}

// Error names both values and their kinds.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s at %s: value A %s = %s, value B %s = %s",
		ErrTypeMismatch,
		displayPath(e.Path),
		e.Left.Kind(), e.Left,
		e.Right.Kind(), e.Right,
	)
}

// Is lets errors.Is match ErrTypeMismatch.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}

	return parent + "." + key
}

func displayPath(path string) string {
	if path == "" {
		return "document root"
	}

	return path
}
