package ankigen

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitedRunnerBoundsConcurrency(t *testing.T) {
	const limit = 3
	r := NewLimitedRunner(context.Background(), limit)

	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	gate := make(chan struct{})

	var started atomic.Int32
	for i := 0; i < 10; i++ {
		r.Go(func() error {
			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()

			started.Add(1)
			<-gate

			mu.Lock()
			current--
			mu.Unlock()
			return nil
		})
	}
	close(gate)
	require.NoError(t, r.Wait())
	assert.LessOrEqual(t, peak, limit)
	assert.Equal(t, int32(10), started.Load())
}

func TestLimitedRunnerGoDoesNotBlockSubmitter(t *testing.T) {
	r := NewLimitedRunner(context.Background(), 1)
	gate := make(chan struct{})

	submitted := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			r.Go(func() error {
				<-gate
				return nil
			})
		}
		close(submitted)
	}()

	select {
	case <-submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("Go blocked the submitter at the concurrency limit")
	}

	close(gate)
	require.NoError(t, r.Wait())
}

func TestLimitedRunnerMinimumOfOne(t *testing.T) {
	r := NewLimitedRunner(context.Background(), 0)
	ran := false
	r.Go(func() error {
		ran = true
		return nil
	})
	require.NoError(t, r.Wait())
	assert.True(t, ran)
}

func TestRunnerContextDerivation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewLimitedRunner(parent, 2)
	ctx := runnerContext(r, parent)
	require.NotNil(t, ctx)

	cancel()
	<-ctx.Done()
}

type plainRunner struct{ wg sync.WaitGroup }

func (p *plainRunner) Go(fn func() error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = fn()
	}()
}

func (p *plainRunner) Wait() error {
	p.wg.Wait()
	return nil
}

func TestRunnerContextFallbackForCustomRunner(t *testing.T) {
	fallback := context.Background()
	assert.Equal(t, fallback, runnerContext(&plainRunner{}, fallback))
}
