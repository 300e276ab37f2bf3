// Package config loads, normalizes, and validates Foreman's TOML
// configuration.
//
// Configuration resolves from an explicit path, ~/.config/foreman/config.toml,
// or a foreman.toml in the working directory, in that order. Missing files are
// not an error; defaults apply and validation still runs. Path fields are
// expanded (~ and relative paths) before any component sees them.
package config
