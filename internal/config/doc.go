// Package config provides configuration loading and validation for the Kairo service.
// It handles YAML-based configuration with per-section validation, loads an optional
// .env file, and lets environment variables override API keys and backend secrets.
package config
