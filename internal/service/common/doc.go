// Package common holds helpers shared by several services.
//
// It provides a thin Docker Engine API client wrapper with call timeouts, a
// decoder for pull progress streams and a helper to detect the current
// system actor (hostname/username) for the run log.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
