package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"uncommon.org/progresstrack/internal/modules/attachment/repository"
	"uncommon.org/progresstrack/pkg/storage"
)

// CleanupService retries attachment deletions that failed during a request.
type CleanupService interface {
	Enqueue(ctx context.Context, storageID string) error
	CleanupPendingAttachments(ctx context.Context) (int, error)
	StartCleanupWorker(ctx context.Context, interval time.Duration)
}

type cleanupService struct {
	pending repository.PendingDeleteRepository
	store   storage.AttachmentStore
	logger  *slog.Logger
}

func NewCleanupService(pending repository.PendingDeleteRepository, store storage.AttachmentStore, logger *slog.Logger) CleanupService {
	return &cleanupService{
		pending: pending,
		store:   store,
		logger:  logger.With("component", "attachment_cleanup"),
	}
}

func (s *cleanupService) Enqueue(ctx context.Context, storageID string) error {
	if storageID == "" {
		return nil
	}
	if err := s.pending.Add(ctx, storageID); err != nil {
		return fmt.Errorf("queue attachment %s for deletion: %w", storageID, err)
	}
	return nil
}

// CleanupPendingAttachments deletes every queued attachment and returns how
// many were removed. Ids that fail again stay queued for the next run.
func (s *cleanupService) CleanupPendingAttachments(ctx context.Context) (int, error) {
	ids, err := s.pending.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending attachment deletes: %w", err)
	}

	removed := 0
	for _, id := range ids {
		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.Warn("attachment delete failed, keeping it queued", "storage_id", id, "error", err)
			continue
		}
		if err := s.pending.Remove(ctx, id); err != nil {
			s.logger.Warn("failed to dequeue attachment", "storage_id", id, "error", err)
			continue
		}
		removed++
	}

	return removed, nil
}

func (s *cleanupService) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.logger.Info("running pending attachment cleanup")
			removed, err := s.CleanupPendingAttachments(ctx)
			if err != nil {
				s.logger.Error("pending attachment cleanup failed", "error", err)
				continue
			}
			s.logger.Info("pending attachment cleanup completed", "removed", removed)
		case <-ctx.Done():
			return
		}
	}
}
