// Package lock implements the run lock that keeps two update runs from
// working on the same Docker daemon at once.
//
// The FileLock stores the holder's PID in a marker file. A marker whose
// process is gone is treated as stale and reclaimed.
package lock
