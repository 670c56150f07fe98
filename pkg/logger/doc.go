// Package logger provides structured logging for the gateway. It wraps the
// standard log/slog package: production environments emit JSON, everything
// else emits text, and every record carries the environment attribute.
package logger
