// Package logging builds slog loggers for the Aeromedia service.
//
// Two output formats are supported: a human-oriented console format with
// flattened key=value attributes and color-coded levels when stdout is a
// terminal, and machine-readable JSON. Component-scoped child loggers are
// created with NewComponentLogger so every record carries the emitting
// subsystem.
package logging
