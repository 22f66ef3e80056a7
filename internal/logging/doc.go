// Package logging builds the slog loggers used across songmill and defines
// the standardized structured field names. Console output is a compact
// key=value format; JSON output is available for log shippers.
package logging
