// Package version exposes build metadata for docker-image-updater.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds. The same
// version is reported by the CLI and sent to the Docker daemon as the user agent.
package version
