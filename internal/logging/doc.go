// Package logging provides structured logging for osagent.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation. Every run of the agent loop produces a structured
// trace that can be inspected after the fact, which matters because most
// executions happen unattended.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Runtime level changes via [Logger.SetLevel]
//   - Context propagation (issue ID, task ID, component)
//   - Log rotation with configurable size limits
//   - Optional gzip compression for rotated logs
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. The [Logger] type
// uses Go's slog internally which is designed for concurrent access. The
// [RotatingWriter] type uses a mutex to protect file operations during
// rotation. Child loggers created via With* methods share the underlying
// writer safely.
//
// # Basic Usage
//
// Create a logger writing to a file:
//
//	logger, err := logging.New("/path/to/osagent.log", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Debug("detailed info", "key", "value")
//	logger.Info("operation completed", "duration_ms", 150)
//	logger.Warn("potential issue", "threshold", 100)
//	logger.Error("operation failed", "error", err.Error())
//
// An empty path writes to stderr instead.
//
// # Context Propagation
//
// Create child loggers with persistent context attributes:
//
//	issueLogger := logger.WithIssue("issue-abc123")
//	execLogger := issueLogger.WithComponent("executor")
//
//	// All logs from execLogger include issue_id and component
//	execLogger.Info("iteration started", "iteration", 3)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"iteration started","issue_id":"issue-abc123","component":"executor","iteration":3}
//
// # Log Rotation
//
// For long-running agents, use rotation to prevent unbounded growth:
//
//	config := logging.RotationConfig{
//	    MaxSizeMB:  10,    // Rotate when file exceeds 10MB
//	    MaxBackups: 3,     // Keep 3 backup files
//	    Compress:   true,  // Gzip compress rotated files
//	}
//
//	logger, err := logging.NewWithRotation("/path/to/osagent.log", "INFO", config)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
// Rotated files are named osagent.log.1, osagent.log.2, etc., where .1 is
// the most recent backup. When compression is enabled, rotated files become
// osagent.log.1.gz, etc.
//
// # Testing
//
// For testing, use [NopLogger] to discard all log output:
//
//	func TestSomething(t *testing.T) {
//	    logger := logging.NopLogger()
//	    // Use logger in tests without creating files
//	}
//
// # Log Levels
//
// The package defines four log levels:
//
//   - [LevelDebug]: Detailed information for debugging
//   - [LevelInfo]: General operational information (default)
//   - [LevelWarn]: Warning conditions that may need attention
//   - [LevelError]: Error conditions that affect functionality
//
// Use [ValidLevels] to get the list of valid level strings, and [ParseLevel]
// to normalize user-provided level strings. [Logger.SetLevel] changes the
// level of a live logger and all of its children, which backs the config
// file watcher.
//
// # Configuration
//
// The logging system is typically configured via the osagent config file:
//
//	logging:
//	  level: info
//	  file: ""
//	  max_size_mb: 10
//	  max_backups: 3
//	  compress: false
package logging
