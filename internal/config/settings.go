package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// errInvalidSettings is wrapped by every Settings validation failure.
	errInvalidSettings = errors.New("invalid runtime settings")
	// errUnsupportedScheme is returned for a base_url the Docker client cannot dial.
	errUnsupportedScheme = errors.New("unsupported scheme")
	// errIncompleteTLS is returned when only one half of a client key pair is configured.
	errIncompleteTLS = errors.New("tls cert and key must be set together")
)

// Settings is the "config" section: options handed to the container runtime client.
// Keys the updater does not know are ignored.
type Settings struct {
	// Docker configures the Docker Engine API client.
	Docker DockerSettings `yaml:"docker"`
}

// DockerSettings mirrors the options accepted by the Docker client constructor.
// Empty fields fall back to the DOCKER_* environment variables.
type DockerSettings struct {
	// BaseURL is the daemon address, e.g. unix:///var/run/docker.sock or tcp://host:2376.
	BaseURL string `yaml:"base_url"`
	// Version pins the Engine API version. When empty the version is negotiated.
	Version string `yaml:"version"`
	// Timeout bounds every HTTP request to the daemon, pulls included.
	Timeout Duration `yaml:"timeout"`
	// TLS enables client certificates for tcp:// daemons.
	TLS *TLSSettings `yaml:"tls"`
}

// TLSSettings lists PEM file paths for a mutually authenticated connection.
type TLSSettings struct {
	// CACert is the certificate authority used to verify the daemon.
	CACert string `yaml:"ca_cert"`
	// Cert is the client certificate.
	Cert string `yaml:"cert"`
	// Key is the client private key.
	Key string `yaml:"key"`
}

// Duration is a time.Duration read either as a Go duration string ("90s", "1m30s")
// or as a bare number of seconds (90, 1.5).
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		switch node.ShortTag() {
		case tagInt, tagFloat:
			seconds, err := strconv.ParseFloat(node.Value, 64)
			if err != nil {
				return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, node.Value, err)
			}

			*d = Duration(seconds * float64(time.Second))

			return nil
		}
	}

	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}

	*d = Duration(parsed)

	return nil
}

// DecodeSettings extracts the "config" section of a merged document.
func DecodeSettings(merged *Value) (*Settings, error) {
	var settings Settings

	section, ok := merged.Get(SectionConfig)
	if !ok || section.IsNull() {
		return &settings, nil
	}

	if section.Kind() != KindMapping {
		return nil, fmt.Errorf("%w: key %q should be a mapping, got %s",
			errInvalidSettings, SectionConfig, section.Kind())
	}

	if err := section.Decode(&settings); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidSettings, err)
	}

	if err := ValidateSettings(&settings); err != nil {
		return nil, err
	}

	return &settings, nil
}

// ValidateSettings checks the runtime settings for obviously broken values.
func ValidateSettings(settings *Settings) error {
	docker := settings.Docker

	if docker.BaseURL != "" {
		parsed, err := url.Parse(docker.BaseURL)
		if err != nil {
			return fmt.Errorf("%w: docker.base_url: %w", errInvalidSettings, err)
		}

		switch parsed.Scheme {
		case "unix", "tcp", "npipe", "http", "https":
		default:
			return fmt.Errorf("%w: docker.base_url: %w %q", errInvalidSettings, errUnsupportedScheme, parsed.Scheme)
		}
	}

	if docker.Timeout < 0 {
		return fmt.Errorf("%w: docker.timeout must not be negative", errInvalidSettings)
	}

	if docker.TLS != nil && (docker.TLS.Cert == "") != (docker.TLS.Key == "") {
		return fmt.Errorf("%w: docker.tls: %w", errInvalidSettings, errIncompleteTLS)
	}

	return nil
}
