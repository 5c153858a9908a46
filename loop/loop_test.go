package loop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T, l *Loop) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errc
}

func TestTasksRunInOrderOnOneGoroutine(t *testing.T) {
	l := New(16)
	startLoop(t, l)

	var got []int
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, l.Post(ctx, func() { got = append(got, i) }))
	}
	require.NoError(t, l.Do(ctx, func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestConcurrentPostersAreSerialized(t *testing.T) {
	l := New(4)
	startLoop(t, l)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func() { counter++ })
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestPanickingTaskDoesNotStopLoop(t *testing.T) {
	l := New(1)
	startLoop(t, l)

	ctx := context.Background()
	require.NoError(t, l.Do(ctx, func() { panic("boom") }))

	ran := false
	require.NoError(t, l.Do(ctx, func() { ran = true }))
	assert.True(t, ran)
}

func TestPostAfterStop(t *testing.T) {
	l := New(1)
	cancel, errc := startLoop(t, l)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}

	assert.ErrorIs(t, l.Post(context.Background(), func() {}), ErrStopped)
	assert.ErrorIs(t, l.Do(context.Background(), func() {}), ErrStopped)
}

func TestDoHonoursContext(t *testing.T) {
	l := New(0) // never started
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Do(ctx, func() {}), context.DeadlineExceeded)

	l.Stop()
	assert.ErrorIs(t, l.Run(context.Background()), ErrStopped)
}

func TestDoSkipsTaskAbandonedInQueue(t *testing.T) {
	l := New(4)
	startLoop(t, l)

	release := make(chan struct{})
	require.NoError(t, l.Post(context.Background(), func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	assert.ErrorIs(t, l.Do(ctx, func() { ran = true }), context.DeadlineExceeded)

	close(release)
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.False(t, ran, "a task whose caller gave up must not run")
}

func TestDoWaitsForStartedTask(t *testing.T) {
	l := New(4)
	startLoop(t, l)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	finished := false
	go func() {
		<-started
		cancel()
	}()
	err := l.Do(ctx, func() {
		close(started)
		time.Sleep(20 * time.Millisecond)
		finished = true
	})
	require.NoError(t, err)
	assert.True(t, finished)
}
