// Package log provides structured protocol logging for FocFleet.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events: frames on the wire, group broadcasts, device
// responses, liveness transitions and errors. It is separate from
// operational logging (slog) - protocol capture provides a complete
// machine-readable trace of a distribution session for later analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to a binary CBOR file
//	fl, err := log.NewFileLogger("fleet.flog")
//
//	// For long sessions: rotate by size
//	fl := log.NewRotatingFileLogger("fleet.flog", 50, 3)
//
//	// Or both at once
//	cfg.ProtocolLogger = log.NewMultiLogger(fl, log.NewSlogAdapter(slog.Default()))
//
// # File Format
//
// FileLogger writes a stream of CBOR-encoded Event records with integer
// keys. Use [Reader] (or the focfleet-log command) to scan a capture back,
// optionally filtered by connection, device, direction or time window.
package log
