package core

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSweepResults_RemovesExpired(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Retention.MaxAge = "1h"
	svc := newTestCoreService(t, cfg, &fakeSegmenter{})
	ctx := context.Background()

	result, err := svc.RemoveBackground(ctx, "cat.jpg", bytes.NewReader(testJPEG(t, 8, 8)))
	if err != nil {
		t.Fatalf("RemoveBackground failed: %v", err)
	}

	removed, err := svc.SweepResults(ctx, time.Now())
	if err != nil {
		t.Fatalf("SweepResults failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected fresh result to be kept, removed %d", removed)
	}

	removed, err = svc.SweepResults(ctx, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("SweepResults failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed result, got %d", removed)
	}

	if _, err := os.Stat(filepath.Join(cfg.ResultDir, result.ResultFilename)); !os.IsNotExist(err) {
		t.Errorf("expected result file to be deleted, stat error: %v", err)
	}
	count, err := svc.databaseService.CountResults(ctx)
	if err != nil {
		t.Fatalf("CountResults failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty index, got %d", count)
	}
}

func TestSweepResults_RemovesUnindexedFiles(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Retention.MaxAge = "1h"
	svc := newTestCoreService(t, cfg, &fakeSegmenter{})

	stale := filepath.Join(cfg.ResultDir, "old_result.png")
	fresh := filepath.Join(cfg.ResultDir, "new_result.png")
	unrelated := filepath.Join(cfg.ResultDir, "notes.txt")
	for _, path := range []string{stale, fresh, unrelated} {
		if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-3 * time.Hour)
	for _, path := range []string{stale, unrelated} {
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := svc.SweepResults(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("SweepResults failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed file, got %d", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("expected stale result to be removed")
	}
	for _, path := range []string{fresh, unrelated} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to be kept: %v", filepath.Base(path), err)
		}
	}
}

func TestSweepResults_DisabledKeepsEverything(t *testing.T) {
	cfg := newTestConfig(t)
	svc := newTestCoreService(t, cfg, &fakeSegmenter{})
	ctx := context.Background()

	result, err := svc.RemoveBackground(ctx, "cat.jpg", bytes.NewReader(testJPEG(t, 8, 8)))
	if err != nil {
		t.Fatalf("RemoveBackground failed: %v", err)
	}

	removed, err := svc.SweepResults(ctx, time.Now().Add(24*365*time.Hour))
	if err != nil || removed != 0 {
		t.Fatalf("expected nothing removed, got %d / %v", removed, err)
	}
	if _, err := os.Stat(filepath.Join(cfg.ResultDir, result.ResultFilename)); err != nil {
		t.Errorf("expected result to be kept: %v", err)
	}
}

func TestStartRetention(t *testing.T) {
	cfg := newTestConfig(t)
	svc := newTestCoreService(t, cfg, &fakeSegmenter{})

	scheduler, err := StartRetention(svc)
	if err != nil || scheduler != nil {
		t.Fatalf("expected no scheduler when retention is disabled, got %v / %v", scheduler, err)
	}
	// Stop on a nil scheduler is a no-op
	scheduler.Stop(context.Background())

	cfg.Retention.MaxAge = "1h"
	cfg.Retention.Schedule = "@every 1m"
	scheduler, err = StartRetention(svc)
	if err != nil || scheduler == nil {
		t.Fatalf("expected running scheduler, got %v / %v", scheduler, err)
	}
	if len(scheduler.cron.Entries()) != 1 {
		t.Errorf("expected one scheduled sweep, got %d", len(scheduler.cron.Entries()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	scheduler.Stop(ctx)
}

func TestStartRetention_InvalidSchedule(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Retention.MaxAge = "1h"
	cfg.Retention.Schedule = "not a schedule"
	svc := newTestCoreService(t, cfg, &fakeSegmenter{})

	if _, err := StartRetention(svc); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
