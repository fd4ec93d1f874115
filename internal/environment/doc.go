// Package environment loads a configuration file (properties, YAML or TOML)
// into a read-only key/value store addressed by dotted keys, with typed
// getters that distinguish an absent key from a malformed value. Process
// environment variables can optionally be overlaid on top of the file.
package environment
