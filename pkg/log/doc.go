// Package log captures protocol traffic for the relay device.
//
// Protocol capture is separate from operational logging. Operational logs
// go through slog and say what the device is doing; protocol events record
// what crossed the wire, one Event per frame, envelope, state change,
// control frame, error or tree snapshot.
//
// A Logger receives events. Implementations:
//
//	NewFileLogger, NewRotatingFileLogger  CBOR event files
//	NewSlogAdapter                        one slog record per event
//	NewRecorder                           bounded in-memory ring
//	NewMultiLogger                        fan out to several of the above
//
// Components that take an optional Logger wrap it with OrNoop.
//
// Event files are a plain concatenation of canonical CBOR events. Read them
// back with NewReader, NewFilteredReader or ReadAll; the relay-log tool
// builds on these.
package log
