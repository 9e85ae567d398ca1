package db

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultCleanupInterval = 1 * time.Hour
	// Expired reset requests are kept a day so a late attempt still reads "expired".
	resetRetention = 24 * time.Hour
	quotaRetention = 7 * 24 * time.Hour
)

type CleanupService struct {
	resets   *PasswordResetRepository
	quotas   *QuotaRepository
	interval time.Duration
	now      func() time.Time
}

func NewCleanupService(resets *PasswordResetRepository, quotas *QuotaRepository) *CleanupService {
	return &CleanupService{
		resets:   resets,
		quotas:   quotas,
		interval: DefaultCleanupInterval,
		now:      time.Now,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting cleanup service", "component", "cleanup", "interval", s.interval)

	s.runCleanup(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping cleanup service", "component", "cleanup")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *CleanupService) runCleanup(ctx context.Context) {
	now := s.now().UTC()

	resetsDeleted, err := s.resets.DeleteExpiredBefore(ctx, now.Add(-resetRetention))
	if err != nil {
		slog.Error("error deleting expired password resets", "component", "cleanup", "error", err)
	} else if resetsDeleted > 0 {
		slog.Info("deleted expired password resets", "component", "cleanup", "count", resetsDeleted)
	}

	quotasDeleted, err := s.quotas.DeleteBefore(ctx, now.Add(-quotaRetention).Format(DayLayout))
	if err != nil {
		slog.Error("error deleting old swipe quotas", "component", "cleanup", "error", err)
	} else if quotasDeleted > 0 {
		slog.Info("deleted old swipe quotas", "component", "cleanup", "count", quotasDeleted)
	}
}
