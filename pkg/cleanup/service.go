// Package cleanup provides data retention and orphan-recovery services.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/dataloom/analystrt/pkg/config"
	"github.com/dataloom/analystrt/pkg/store"
)

// Service periodically enforces retention and crash-recovery policies:
//   - Reclaims sessions orphaned by a pod that died mid-turn
//   - Soft-deletes sessions past the retention window
//   - Removes stale events rows past their TTL
//
// All operations are idempotent and safe to run from multiple pods.
type Service struct {
	config *config.RetentionConfig
	store  *store.Store

	orphanCancel context.CancelFunc
	orphanDone   chan struct{}

	retentionCancel context.CancelFunc
	retentionDone   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, st *store.Store) *Service {
	return &Service{config: cfg, store: st}
}

// Start launches the background orphan-recovery and retention-sweep loops.
func (s *Service) Start(ctx context.Context) {
	if s.orphanCancel != nil {
		return
	}

	orphanCtx, orphanCancel := context.WithCancel(ctx)
	s.orphanCancel = orphanCancel
	s.orphanDone = make(chan struct{})
	go s.runOrphanSweep(orphanCtx)

	retentionCtx, retentionCancel := context.WithCancel(ctx)
	s.retentionCancel = retentionCancel
	s.retentionDone = make(chan struct{})
	go s.runRetentionSweep(retentionCtx)

	slog.Info("cleanup service started",
		"orphan_threshold", s.config.OrphanThreshold,
		"orphan_check_interval", s.config.OrphanCheckInterval,
		"session_retention_days", s.config.SessionRetentionDays,
		"event_ttl", s.config.EventTTL,
		"cleanup_interval", s.config.CleanupInterval)
}

// Stop signals both loops to exit and waits for them to finish.
func (s *Service) Stop() {
	if s.orphanCancel == nil {
		return
	}
	s.orphanCancel()
	s.retentionCancel()
	<-s.orphanDone
	<-s.retentionDone
	slog.Info("cleanup service stopped")
}

func (s *Service) runOrphanSweep(ctx context.Context) {
	defer close(s.orphanDone)

	s.reclaimOrphans(ctx)

	ticker := time.NewTicker(s.config.OrphanCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reclaimOrphans(ctx)
		}
	}
}

func (s *Service) runRetentionSweep(ctx context.Context) {
	defer close(s.retentionDone)

	s.runRetention(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runRetention(ctx)
		}
	}
}

func (s *Service) runRetention(ctx context.Context) {
	s.softDeleteOldSessions(ctx)
	s.deleteOldEvents(ctx)
}

func (s *Service) reclaimOrphans(ctx context.Context) {
	orphans, err := s.store.FindOrphanedSessions(ctx, s.config.OrphanThreshold)
	if err != nil {
		slog.Error("cleanup: find orphaned sessions failed", "error", err)
		return
	}
	for _, sess := range orphans {
		if err := s.store.ReclaimOrphan(ctx, sess.ID); err != nil {
			slog.Error("cleanup: reclaim orphan failed", "session_id", sess.ID, "error", err)
			continue
		}
		slog.Info("cleanup: reclaimed orphaned session", "session_id", sess.ID)
	}
}

func (s *Service) softDeleteOldSessions(ctx context.Context) {
	count, err := s.store.SoftDeleteOldSessions(ctx, s.config.SessionRetentionDays)
	if err != nil {
		slog.Error("cleanup: soft-delete sessions failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("cleanup: soft-deleted old sessions", "count", count)
	}
}

func (s *Service) deleteOldEvents(ctx context.Context) {
	count, err := s.store.DeleteOldEvents(ctx, s.config.EventTTL)
	if err != nil {
		slog.Error("cleanup: event cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("cleanup: deleted stale events", "count", count)
	}
}
