// Package config loads and validates the songmill TOML configuration.
package config
