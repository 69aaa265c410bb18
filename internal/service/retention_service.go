package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/termsite/backend/internal/repository"
)

// RetentionService prunes aged submission-log rows so the audit table does
// not grow without bound.
type RetentionService interface {
	// PurgeAttempts deletes attempts older than the given number of days
	// and returns the count deleted. Non-positive days fall back to the
	// configured default.
	PurgeAttempts(ctx context.Context, days int) (int64, error)
}

type retentionServiceImpl struct {
	repo        repository.SubmissionRepository
	defaultDays int
}

// NewRetentionService creates a RetentionService with the given default
// retention period.
func NewRetentionService(repo repository.SubmissionRepository, defaultDays int) RetentionService {
	return &retentionServiceImpl{repo: repo, defaultDays: defaultDays}
}

func (s *retentionServiceImpl) PurgeAttempts(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = s.defaultDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	deleted, err := s.repo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	slog.Info("purged old submission attempts", "deleted", deleted, "days", days)
	return deleted, nil
}
