package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeFile stores contents under dir and returns the full path.
func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), DefaultFilePermissions))

	return path
}

// TestLoad_MergesFilesInOrder loads two files and checks precedence and list union.
func TestLoad_MergesFilesInOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := writeFile(t, dir, "base.yml", `
config:
  docker:
    base_url: unix:///var/run/docker.sock
    version: "1.16"
watch:
  ubuntu:
    images: [ubuntu:latest, ubuntu:14.04]
    commands: [foo, bar]
`)
	override := writeFile(t, dir, "override.yml", `
config:
  docker:
    version: "1.43"
    timeout: 30s
watch:
  ubuntu:
    images: [ubuntu:latest, ubuntu:24.04]
`)

	cfg, err := Load(context.Background(), base, override)
	require.NoError(t, err)
	require.Equal(t, []string{base, override}, cfg.Sources)

	require.Equal(t, "unix:///var/run/docker.sock", cfg.Settings.Docker.BaseURL)
	require.Equal(t, "1.43", cfg.Settings.Docker.Version)
	require.Equal(t, 30*time.Second, cfg.Settings.Docker.Timeout.Std())

	watch, ok := cfg.Document.Get(SectionWatch)
	require.True(t, ok)

	ubuntu, _ := watch.Get("ubuntu")
	images, _ := ubuntu.Get("images")
	require.True(t, Strings("ubuntu:latest", "ubuntu:14.04", "ubuntu:24.04").Equal(images))
}

// TestLoad_EmptyFileIsNeutral ensures an empty file does not break the merge.
func TestLoad_EmptyFileIsNeutral(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.yml", "")

	cfg, err := Load(context.Background(), empty)
	require.NoError(t, err)
	require.True(t, Seed().Equal(cfg.Document))
}

// TestLoad_Errors covers the fatal startup failures.
func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := Load(context.Background(), filepath.Join(dir, "missing.yml"))
	require.ErrorIs(t, err, ErrParse)

	broken := writeFile(t, dir, "broken.yml", "watch: [unclosed")
	_, err = Load(context.Background(), broken)
	require.ErrorIs(t, err, ErrParse)
	require.Contains(t, err.Error(), broken)

	mismatch := writeFile(t, dir, "mismatch.yml", "watch: []\n")
	_, err = Load(context.Background(), mismatch)
	require.ErrorIs(t, err, ErrTypeMismatch)
	require.Contains(t, err.Error(), mismatch)

	list := writeFile(t, dir, "list.yml", "- a\n- b\n")
	_, err = Load(context.Background(), list)
	require.ErrorIs(t, err, ErrTypeMismatch)

	badSettings := writeFile(t, dir, "settings.yml", "config:\n  docker:\n    base_url: ftp://nowhere\n")
	_, err = Load(context.Background(), badSettings)
	require.ErrorIs(t, err, errInvalidSettings)
}

// TestValidateSettings checks base URL schemes, timeouts and TLS pairs.
func TestValidateSettings(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSettings(new(Settings)))

	ok := &Settings{Docker: DockerSettings{
		BaseURL: "tcp://10.0.0.2:2376",
		TLS:     &TLSSettings{CACert: "ca.pem", Cert: "cert.pem", Key: "key.pem"},
	}}
	require.NoError(t, ValidateSettings(ok))

	bad := []*Settings{
		{Docker: DockerSettings{BaseURL: "ftp://host"}},
		{Docker: DockerSettings{Timeout: Duration(-time.Second)}},
		{Docker: DockerSettings{TLS: &TLSSettings{Cert: "cert.pem"}}},
	}
	for _, settings := range bad {
		require.ErrorIs(t, ValidateSettings(settings), errInvalidSettings)
	}
}

// TestDecodeSettings_RejectsNonMapping ensures a scalar "config" section is reported.
func TestDecodeSettings_RejectsNonMapping(t *testing.T) {
	t.Parallel()

	doc := Mapping()
	doc.Set(SectionConfig, String("docker"))

	_, err := DecodeSettings(doc)
	require.ErrorIs(t, err, errInvalidSettings)
}

// TestDecodeSettings_Timeout accepts duration strings and bare seconds.
func TestDecodeSettings_Timeout(t *testing.T) {
	t.Parallel()

	tcs := map[string]time.Duration{
		"timeout: 30s":           30 * time.Second,
		"timeout: 1m30s":         90 * time.Second,
		"timeout: 30":            30 * time.Second,
		"timeout: 1.5":           1500 * time.Millisecond,
		"timeout: ~":             0,
		"base_url: tcp://h:2375": 0,
	}

	for input, want := range tcs {
		t.Run(input, func(t *testing.T) {
			t.Parallel()

			doc, _, err := Parse([]byte("config:\n  docker:\n    " + input + "\n"))
			require.NoError(t, err)

			settings, err := DecodeSettings(doc)
			require.NoError(t, err)
			require.Equal(t, want, settings.Docker.Timeout.Std())
		})
	}

	for _, input := range []string{"timeout: soon", "timeout: [30]"} {
		doc, _, err := Parse([]byte("config:\n  docker:\n    " + input + "\n"))
		require.NoError(t, err)

		_, err = DecodeSettings(doc)
		require.ErrorIs(t, err, errInvalidSettings, input)
	}
}
