// Package watch contains the watch-group model and the registry that builds it.
//
// A Group names a set of images to monitor together with the shell commands
// to run when any of them changes. Build validates the "watch" section of a
// merged configuration and returns the groups in configuration order.
package watch
