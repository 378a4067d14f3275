// Package config loads, normalizes, and validates leadscore configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY. The Config type centralizes every knob the optimizer and
// CLI need: evaluation data location, checkpoint and output paths, model
// endpoint, and beam-search parameters.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
