// Package config loads the service configuration from multiple sources (YAML
// files, environment variables, CLI flags) with precedence: CLI flags > YAML
// config > Environment variables > Defaults. It also locates the forum
// settings artifact when none is configured.
package config
