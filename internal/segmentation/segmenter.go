package segmentation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Segmenter removes the background of an image.
// Input is PNG bytes, output is PNG bytes carrying an alpha channel.
type Segmenter interface {
	Remove(ctx context.Context, png []byte) ([]byte, error)
}

// SegmenterFunc adapts a plain function to the Segmenter interface
type SegmenterFunc func(ctx context.Context, png []byte) ([]byte, error)

func (f SegmenterFunc) Remove(ctx context.Context, png []byte) ([]byte, error) {
	return f(ctx, png)
}

// Config describes how to reach the segmentation model
type Config struct {
	Type          string
	URL           string
	FieldName     string
	FormFields    map[string]string
	Command       string
	Args          []string
	Timeout       time.Duration
	MaxConcurrent int
}

// Factory creates a segmenter from its configuration
type Factory func(cfg Config) (Segmenter, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		"http":    newHTTPSegmenterFromConfig,
		"command": newCommandSegmenterFromConfig,
	}
)

// Register makes a segmenter type available to New
func Register(typeName string, factory Factory) error {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if _, exists := factories[typeName]; exists {
		return fmt.Errorf("segmenter type %s is already registered", typeName)
	}
	factories[typeName] = factory
	return nil
}

// Types returns the registered segmenter type names in sorted order
func Types() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the segmenter for cfg.Type and applies the configured
// timeout and concurrency limit
func New(cfg Config) (Segmenter, error) {
	factoriesMu.RLock()
	factory, ok := factories[cfg.Type]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported segmenter type: %q", cfg.Type)
	}

	s, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s segmenter: %w", cfg.Type, err)
	}

	slog.Debug("segmentation: segmenter created",
		"type", cfg.Type,
		"timeout", cfg.Timeout,
		"max_concurrent", cfg.MaxConcurrent)

	return Limit(s, cfg.MaxConcurrent, cfg.Timeout), nil
}

type limitedSegmenter struct {
	next    Segmenter
	sem     *semaphore.Weighted
	timeout time.Duration
}

// Limit wraps next so that at most maxConcurrent calls run at once and each call
// is bounded by timeout. Zero disables the respective limit.
func Limit(next Segmenter, maxConcurrent int, timeout time.Duration) Segmenter {
	if maxConcurrent <= 0 && timeout <= 0 {
		return next
	}
	l := &limitedSegmenter{next: next, timeout: timeout}
	if maxConcurrent > 0 {
		l.sem = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return l
}

func (l *limitedSegmenter) Remove(ctx context.Context, png []byte) ([]byte, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("waiting for model: %w", err)
		}
		defer l.sem.Release(1)
	}

	return l.next.Remove(ctx, png)
}
