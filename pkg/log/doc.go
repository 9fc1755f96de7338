// Package log provides protocol event logging for the Ezlo client.
//
// Components emit typed Events (frames, requests, state changes,
// errors) to a Logger. Implementations include:
//   - NoopLogger: discards everything (the default)
//   - SlogAdapter: writes events to a log/slog logger for console output
//   - FileLogger: appends CBOR-encoded events to a dump file
//   - MultiLogger: fans out to several loggers
//
// The CBOR dump format uses integer keys for compactness and can be
// read back with Reader, optionally filtered.
package log
