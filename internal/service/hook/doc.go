// Package hook runs the post-update commands of a watch group.
//
// Commands are shell command lines executed synchronously through the
// platform shell, with the updater's stdout and stderr attached.
package hook
