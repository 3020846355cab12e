package segmentation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UnknownType(t *testing.T) {
	_, err := New(Config{Type: "magic"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestNew_HTTPRequiresURL(t *testing.T) {
	_, err := New(Config{Type: "http"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")
}

func TestNew_CommandDefaults(t *testing.T) {
	s, err := New(Config{Type: "command"})
	require.NoError(t, err)

	cmd, ok := s.(*CommandSegmenter)
	require.True(t, ok, "expected unwrapped *CommandSegmenter without limits")
	assert.Equal(t, "rembg", cmd.name)
	assert.Equal(t, []string{"i", "-", "-"}, cmd.args)
}

func TestNew_AppliesLimits(t *testing.T) {
	s, err := New(Config{Type: "command", Command: "cat", MaxConcurrent: 2, Timeout: time.Second})
	require.NoError(t, err)

	limited, ok := s.(*limitedSegmenter)
	require.True(t, ok)
	assert.NotNil(t, limited.sem)
	assert.Equal(t, time.Second, limited.timeout)
}

func TestRegister_Duplicate(t *testing.T) {
	err := Register("http", newHTTPSegmenterFromConfig)
	assert.Error(t, err)
	assert.Contains(t, Types(), "http")
	assert.Contains(t, Types(), "command")
}

func TestLimit_NoLimitsReturnsSame(t *testing.T) {
	inner := SegmenterFunc(func(ctx context.Context, png []byte) ([]byte, error) { return png, nil })
	s := Limit(inner, 0, 0)

	out, err := s.Remove(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), out)
	_, wrapped := s.(*limitedSegmenter)
	assert.False(t, wrapped)
}

func TestLimit_Timeout(t *testing.T) {
	blocking := SegmenterFunc(func(ctx context.Context, png []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := Limit(blocking, 0, 20*time.Millisecond).Remove(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLimit_MaxConcurrent(t *testing.T) {
	var running, peak int32
	slow := SegmenterFunc(func(ctx context.Context, png []byte) ([]byte, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return png, nil
	})

	s := Limit(slow, 2, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Remove(context.Background(), []byte("img"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestLimit_CancelledWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	hold := SegmenterFunc(func(ctx context.Context, png []byte) ([]byte, error) {
		<-release
		return png, nil
	})
	s := Limit(hold, 1, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Remove(context.Background(), nil)
	}()
	// let the first call take the only slot
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Remove(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	<-done
}
