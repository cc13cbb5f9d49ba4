package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarquez/pcitrack/internal/model"
)

func TestRegistryRun(t *testing.T) {
	r := NewRegistry()
	r.Register("noop", func(ctx context.Context) (any, error) {
		return "done", nil
	})

	out, err := r.Run(context.Background(), "noop")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestRegistryUnknownJob(t *testing.T) {
	r := NewRegistry()
	_, err := r.Run(context.Background(), "no-such-job")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	r.Register("b", func(ctx context.Context) (any, error) { return nil, nil })
	r.Register("a", func(ctx context.Context) (any, error) { return nil, nil })
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestRegistrySerializesSameJob(t *testing.T) {
	r := NewRegistry()
	var mu sync.Mutex
	running := 0
	maxRunning := 0
	r.Register("slow", func(ctx context.Context) (any, error) {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return nil, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Run(context.Background(), "slow")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxRunning, "a job never overlaps its own invocations")
}
