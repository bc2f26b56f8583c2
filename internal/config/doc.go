// Package config loads the updater configuration.
//
// Each YAML file is parsed into a Value, a tagged union of null, bool, int,
// float, string, sequence and mapping. Files are folded together with Merge:
// mappings merge recursively, sequences are unioned, and scalars take the
// right-hand value. The "config" section is then decoded into Settings for the
// container runtime client, while the "watch" section is left to the watch
// registry.
package config
