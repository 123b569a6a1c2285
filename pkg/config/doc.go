// Package config loads sheetsite's YAML configuration, applies SHEETSITE_*
// environment overrides and builds the configured storage backend.
package config
