package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepResults deletes results created before now minus retention.maxAge, both the
// indexed ones and stray files in the result directory. It returns the number of
// removed files. A zero maxAge keeps everything.
func (service *CoreService) SweepResults(ctx context.Context, now time.Time) (int, error) {
	maxAge := service.config.Retention.MaxAgeDuration()
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-maxAge)

	expired, err := service.databaseService.GetResultsCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired results: %w", err)
	}

	removed := 0
	var errs []error
	for _, result := range expired {
		if err := service.results.Remove(result.Filename); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", result.Filename, err))
			continue
		}
		if err := service.databaseService.DeleteResult(ctx, result.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete index entry %s: %w", result.ID, err))
			continue
		}
		removed++
	}

	strays, err := service.sweepUnindexed(ctx, cutoff)
	removed += strays
	if err != nil {
		errs = append(errs, err)
	}

	slog.Info("core: retention sweep finished", "removed", removed, "cutoff", cutoff)
	return removed, errors.Join(errs...)
}

// sweepUnindexed removes result files without an index entry whose modification time is before cutoff
func (service *CoreService) sweepUnindexed(ctx context.Context, cutoff time.Time) (int, error) {
	names, err := service.results.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list result directory: %w", err)
	}

	removed := 0
	for _, name := range names {
		if !strings.HasSuffix(name, "_result.png") {
			continue
		}
		indexed, err := service.databaseService.GetResultByFilename(ctx, name)
		if err != nil {
			return removed, fmt.Errorf("failed to look up %s: %w", name, err)
		}
		if indexed != nil {
			continue
		}
		info, err := service.results.Stat(name)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return removed, err
		}
		if info.ModTime().Before(cutoff) {
			if err := service.results.Remove(name); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// RetentionScheduler runs SweepResults on the configured cron schedule
type RetentionScheduler struct {
	cron *cron.Cron
}

// StartRetention schedules periodic sweeps. It returns nil when retention is disabled.
func StartRetention(service *CoreService) (*RetentionScheduler, error) {
	retention := service.config.Retention
	if retention.MaxAgeDuration() <= 0 {
		slog.Info("core: retention disabled, results are kept")
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(retention.Schedule, func() {
		if _, err := service.SweepResults(context.Background(), time.Now()); err != nil {
			slog.Error("core: retention sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", retention.Schedule, err)
	}
	c.Start()

	slog.Info("core: retention scheduled", "schedule", retention.Schedule, "max_age", retention.MaxAge)
	return &RetentionScheduler{cron: c}, nil
}

// Stop prevents further sweeps and waits for a running one until ctx is done
func (s *RetentionScheduler) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
