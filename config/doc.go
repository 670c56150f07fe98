// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the gateway configuration structure:
// server settings, backend service descriptors, route rules, circuit breaker
// tuning, and health check intervals. Validation runs at load time so a
// malformed configuration (bad URL, dangling route reference, duplicate
// service name) aborts startup instead of surfacing mid-request.
package config
