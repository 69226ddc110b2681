package loop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunPendingFIFO(t *testing.T) {
	l := New()
	var got []int
	for i := 0; i < 5; i++ {
		l.Post(func() { got = append(got, i) })
	}

	assert.Equal(t, 5, l.RunPending())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Equal(t, 0, l.RunPending())
}

func TestLoop_PostFromPostedRunsNextRound(t *testing.T) {
	l := New()
	var order []string
	l.Post(func() {
		order = append(order, "outer")
		l.Post(func() { order = append(order, "inner") })
		order = append(order, "outer-done")
	})

	l.RunPending()
	assert.Equal(t, []string{"outer", "outer-done"}, order)
	assert.Equal(t, 1, l.Pending())

	l.RunPending()
	assert.Equal(t, []string{"outer", "outer-done", "inner"}, order)
}

func TestLoop_PanicIsContained(t *testing.T) {
	l := New()
	ran := false
	l.Post(func() { panic("boom") })
	l.Post(func() { ran = true })

	assert.Equal(t, 2, l.RunPending())
	assert.True(t, ran)
	total, panicked := l.Stats()
	assert.Equal(t, uint64(2), total)
	assert.Equal(t, uint64(1), panicked)
}

func TestLoop_RunProcessesCrossGoroutinePosts(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Post(func() {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 10
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLoop_RunTwice(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = l.Run(ctx) }()
	require.Eventually(t, func() bool { return l.running.Load() }, time.Second, time.Millisecond)
	assert.ErrorIs(t, l.Run(ctx), ErrAlreadyRunning)
}
