package gestalt

// Logger defines the interface for engine logging.
// Structured key-value pairs keep log output consistent and parseable and
// make the interface compatible with slog, zap and similar libraries:
//
//	logger.Info("message", "key1", "value1", "key2", "value2")
//
// Override notices (a definition silently superseded or preserved) are
// reported through Info; they never interrupt processing.
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, args ...any)
}

// noopLogger discards everything. Used whenever a caller passes a nil
// Logger so the engine never has to nil-check at call sites.
type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

func ensureLogger(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}
