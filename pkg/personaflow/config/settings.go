package config

import (
	"time"
)

// Engine defaults. The retry and timeout values are deployment-tunable
// but these literals are the compatibility baseline.
const (
	DefaultMaxAttempts     = 3
	DefaultRetryDelay      = 5 * time.Second
	DefaultWorkflowTimeout = 300 * time.Second
	DefaultMaxConcurrency  = 4
	DefaultToolLoopLimit   = 5
)

// Settings holds the engine's workflow tunables.
type Settings struct {
	// MaxAttempts is the per-task retry budget.
	MaxAttempts int
	// RetryDelay is the fixed delay between task attempts.
	RetryDelay time.Duration
	// WorkflowTimeout bounds one workflow run's wall-clock time.
	WorkflowTimeout time.Duration
	// MaxConcurrency is the batch-mode concurrency ceiling.
	MaxConcurrency int
	// ToolLoopLimit bounds reactive tool-loop iterations.
	ToolLoopLimit int
}

// DefaultSettings returns the literal engine defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxAttempts:     DefaultMaxAttempts,
		RetryDelay:      DefaultRetryDelay,
		WorkflowTimeout: DefaultWorkflowTimeout,
		MaxConcurrency:  DefaultMaxConcurrency,
		ToolLoopLimit:   DefaultToolLoopLimit,
	}
}

// SettingsFrom extracts Settings from the "workflow" section of a Config,
// falling back to the defaults for missing keys.
func SettingsFrom(c Config) Settings {
	section := c.Sub("workflow")
	return Settings{
		MaxAttempts:     section.Int("max_attempts", DefaultMaxAttempts),
		RetryDelay:      section.Duration("retry_delay", DefaultRetryDelay),
		WorkflowTimeout: section.Duration("timeout", DefaultWorkflowTimeout),
		MaxConcurrency:  section.Int("max_concurrency", DefaultMaxConcurrency),
		ToolLoopLimit:   section.Int("tool_loop_limit", DefaultToolLoopLimit),
	}
}
