package engine

import "time"

// Config bounds a workflow run's resource consumption.
type Config struct {
	// WorkflowTimeout is the whole-run wall-clock budget. Default 300s.
	WorkflowTimeout time.Duration
	// StepTimeout is the per-step budget; a step with no completion event
	// within it is force-completed as errored. Default 120s.
	StepTimeout time.Duration
	// MaxIterationsPerAgent bounds a single agent's tool-call/LLM-call loop,
	// independent of the timeouts, as a last-resort guard against a model
	// that never stops requesting tools.
	MaxIterationsPerAgent int
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		WorkflowTimeout:       300 * time.Second,
		StepTimeout:           120 * time.Second,
		MaxIterationsPerAgent: 8,
	}
}
