package config

import "time"

// RetentionConfig controls data retention, orphan detection, and cleanup
// sweep behavior.
type RetentionConfig struct {
	// SessionRetentionDays is how many days to keep completed sessions
	// before soft-deleting them (setting deleted_at).
	SessionRetentionDays int `yaml:"session_retention_days"`

	// EventTTL is the maximum age of events rows before deletion.
	// Per-session cleanup (cascading delete) handles the normal case; this
	// is a safety net for events whose session is never deleted.
	EventTTL time.Duration `yaml:"event_ttl"`

	// OrphanThreshold is how long a session can sit claimed (in_progress)
	// without a heartbeat before it's considered orphaned — its owning
	// pod died mid-turn without releasing the claim.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`

	// OrphanCheckInterval is how often the orphan sweep runs. Kept separate
	// from CleanupInterval: orphan recovery wants a tight loop, retention
	// cleanup doesn't.
	OrphanCheckInterval time.Duration `yaml:"orphan_check_interval"`

	// CleanupInterval is how often the retention sweep (old sessions,
	// stale events) runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		SessionRetentionDays: 365,
		EventTTL:             1 * time.Hour,
		OrphanThreshold:      5 * time.Minute,
		OrphanCheckInterval:  5 * time.Minute,
		CleanupInterval:      12 * time.Hour,
	}
}
