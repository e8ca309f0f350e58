// Package logging provides structured logging for driveprobe.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the tool. Logging is silent by default so that
// hex dumps, watch tables, and search results stay readable; set the
// DRIVEPROBE_LOG_LEVEL environment variable to enable output.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (CDB traces, payload hex dumps)
//   - Info: Normal operations (device open, overlay moves, hook installs)
//   - Warn: Non-fatal issues (short transfers, degraded fill path)
//   - Error: Fatal issues (device unreachable, rejected commands)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("overlay moved",
//	    zap.Uint32("base", base),
//	    zap.Uint32("wordcount", count),
//	)
//
// # Protocol Tracing
//
// Every backdoor command can be traced at debug level:
//
//	logging.LogCDB(cdb[:], length)
//	logging.LogRawBytes("data in", payload)
package logging
