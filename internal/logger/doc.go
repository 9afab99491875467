// Package logger wraps zap with:
//   - a global sugared logger writing console output to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and configuration,
//   - leveled convenience functions (Infof, WarnKV, ...).
//
// Every service takes a context and logs through it, so names and fields
// attached upstream follow the call chain.
package logger
