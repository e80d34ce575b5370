// Package config holds the simscript configuration.
//
// Configuration is built in three steps, later steps overriding earlier:
//
//  1. Built-in defaults (Default)
//  2. A TOML or YAML file, chosen by extension
//  3. Environment variables (SIMSCRIPT_LOG_LEVEL, SIMSCRIPT_LISTEN, ...)
//
// Command line flags are applied by the caller after Load returns.
//
// # Sub-packages
//
//   - loader: file decoding and environment lookup
//   - watcher: fsnotify based file watching for script reload
package config
