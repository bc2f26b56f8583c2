package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/docker-image-updater/internal/logger"
)

const (
	// DefaultConfigFilename is read when no configuration file is given.
	DefaultConfigFilename = "/etc/docker-image-updater.yml"

	// DefaultFilePermissions is used for files the updater writes itself.
	DefaultFilePermissions = 0o600

	// SectionConfig holds the runtime client settings.
	SectionConfig = "config"
	// SectionWatch holds the watch groups.
	SectionWatch = "watch"
)

// Config is the result of loading and merging every configuration source.
type Config struct {
	// Document is the merged configuration, always a mapping with both sections.
	Document *Value
	// Settings is the decoded "config" section.
	Settings *Settings
	// Sources lists the files that were merged, in order.
	Sources []string
}

// Seed returns the document every load starts from: {config: {}, watch: {}}.
func Seed() *Value {
	seed := Mapping()
	seed.Set(SectionConfig, Mapping())
	seed.Set(SectionWatch, Mapping())

	return seed
}

// Load reads, parses and merges the files at paths from left to right.
// Without paths DefaultConfigFilename is used.
func Load(ctx context.Context, paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = []string{DefaultConfigFilename}
	}

	merged := Seed()

	for _, path := range paths {
		document, err := ReadFile(ctx, path)
		if err != nil {
			return nil, err
		}

		merged, err = Fold(merged, document)
		if err != nil {
			return nil, fmt.Errorf("error in configuration file %s: %w", path, err)
		}

		logger.DebugKV(ctx, "Merged configuration file", "path", path)
	}

	settings, err := DecodeSettings(merged)
	if err != nil {
		return nil, err
	}

	return &Config{
		Document: merged,
		Settings: settings,
		Sources:  paths,
	}, nil
}

// ReadFile parses one configuration file and logs any duplicate-key warnings.
func ReadFile(ctx context.Context, path string) (*Value, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrParse, path, err)
	}

	document, warnings, err := Parse(contents)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrParse, path, err)
	}

	for _, warning := range warnings {
		logger.WarnKV(ctx, "Configuration warning", "path", path, "warning", warning)
	}

	return document, nil
}
