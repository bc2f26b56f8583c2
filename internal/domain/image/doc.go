// Package image holds the container image types shared by the runtime client
// and the updater: the content identity, the not-found condition and pull
// progress events.
package image
