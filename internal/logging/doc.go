// Package logging provides structured logging for origctl.
//
// This package wraps the zap logger with convenience functions for the
// logging patterns used by the engine, transports and the event bridge.
//
// # Log Levels
//
//   - Debug: Frame hex dumps, unhandled reports, poll cycles
//   - Info: Connection lifecycle, state changes
//   - Warn: Dropped writes, dropped events, fallback dials
//   - Error: Dial failures, read errors
//
// # Specialized Logging
//
//	logging.LogConnection(address, "connected")
//	logging.LogFrame("tx", address, frame)
//	logging.LogStateChange("anc_mode", "normal")
//
// # Configuration
//
// Logging is silent by default. Set ORIGCTL_LOG_LEVEL (or pass --log-level)
// to enable console output on stderr:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
