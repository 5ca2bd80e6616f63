/*
Package log provides structured logging for Tally using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers and configurable log levels. All logs include
timestamps and support filtering by severity level.

Component loggers attach context fields relevant to the sync engine:

	logger := log.WithComponent("reconciler")
	logger.Info().Str("op_id", op.ID).Msg("operation replayed")

Output is JSON by default, or zerolog's console writer for local development.
Initialize once at startup via log.Init(Config{...}); the zero value falls
back to info level on stdout.
*/
package log
