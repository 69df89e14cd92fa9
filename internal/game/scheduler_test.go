package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fired struct {
	mu  sync.Mutex
	ids []string
}

func (f *fired) add(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
}

func (f *fired) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

func TestSchedulerFiresInDueOrder(t *testing.T) {
	var f fired
	s := NewScheduler(f.add, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	now := time.Now()
	s.Schedule("c", now.Add(60*time.Millisecond))
	s.Schedule("a", now.Add(20*time.Millisecond))
	s.Schedule("b", now.Add(40*time.Millisecond))
	require.True(t, s.Pending("a"))

	require.Eventually(t, func() bool { return len(f.list()) == 3 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"a", "b", "c"}, f.list())
	require.False(t, s.Pending("a"))
	require.Zero(t, s.Len())
}

func TestSchedulerFiresOnce(t *testing.T) {
	var f fired
	s := NewScheduler(f.add, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	due := time.Now().Add(10 * time.Millisecond)
	s.Schedule("x", due)
	s.Schedule("x", due)
	go s.Run(ctx)

	require.Eventually(t, func() bool { return len(f.list()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, []string{"x"}, f.list())
}

func TestSchedulerPastDueFiresImmediately(t *testing.T) {
	var f fired
	s := NewScheduler(f.add, nil)
	s.Schedule("late", time.Now().Add(-time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.Eventually(t, func() bool { return len(f.list()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerSurvivesPanickingSettlement(t *testing.T) {
	var f fired
	s := NewScheduler(func(id string) {
		if id == "boom" {
			panic("settlement failed")
		}
		f.add(id)
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	now := time.Now()
	s.Schedule("boom", now.Add(5*time.Millisecond))
	s.Schedule("ok", now.Add(15*time.Millisecond))
	require.Eventually(t, func() bool { return len(f.list()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	s := NewScheduler(func(string) {}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
