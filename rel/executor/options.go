package executor

// Options is the executor-level configuration.
type Options struct {
	// EnableDebugLogging dumps per-tuple trace output while executing.
	EnableDebugLogging bool
}
