package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUpdateOptNoUpdateDoesNotDeadlock(t *testing.T) {
	n := New(42)

	updated := n.UpdateOpt(func(v int) (int, bool) {
		return v, false
	})
	require.False(t, updated)

	done := make(chan struct{})
	go func() {
		n.Set(100)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deadlock: Set blocked after UpdateOpt returned false")
	}

	v, ok := n.Peek()
	require.True(t, ok)
	require.Equal(t, 100, v)
}

func TestGetWaitsForNewer(t *testing.T) {
	n := NewEmpty[int]()

	go func() {
		for i := 0; i <= 1000; i++ {
			n.Set(i)
		}
	}()

	version := uint64(0)
	for {
		v, next, err := n.Get(context.Background(), version)
		require.NoError(t, err)
		require.GreaterOrEqual(t, next, version)
		version = next
		if v == 1000 {
			break
		}
	}
}

func TestGetContextDone(t *testing.T) {
	n := New("idle")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := n.Get(ctx, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseWakesListeners(t *testing.T) {
	n := New("idle")

	var seen []string
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Listen(context.Background(), func(s string) error {
			seen = append(seen, s)
			if s == "running" {
				n.Close()
			}
			return nil
		})
	}()

	n.Set("running")

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("listener was not woken up by close")
	}
	require.Equal(t, "running", seen[len(seen)-1])

	n.Set("ignored")
	v, ok := n.Peek()
	require.True(t, ok)
	require.Equal(t, "running", v)
}
