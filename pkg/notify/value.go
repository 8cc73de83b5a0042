package notify

import (
	"context"
	"errors"
	"sync/atomic"
)

var ErrClosed = errors.New("notify already closed")

// V is a versioned value. Every Set bumps the version and wakes up
// everyone waiting in Get for a newer version.
type V[T any] struct {
	value   atomic.Pointer[value[T]]
	barrier chan *version[T]
	closed  chan struct{}
}

type value[T any] struct {
	value   T
	version uint64
}

type version[T any] struct {
	value   T
	version uint64
	waiter  chan struct{}
}

func NewEmpty[T any]() *V[T] {
	v := &V[T]{
		barrier: make(chan *version[T], 1),
		closed:  make(chan struct{}),
	}
	v.barrier <- &version[T]{waiter: make(chan struct{})}
	return v
}

func New[T any](t T) *V[T] {
	v := NewEmpty[T]()
	v.value.Store(&value[T]{t, 0})
	return v
}

// Get returns the first value with a version newer than the one passed in,
// blocking until such value is set, the context is done or V is closed.
func (v *V[T]) Get(ctx context.Context, version uint64) (T, uint64, error) {
	if current := v.value.Load(); current != nil && current.version > version {
		return current.value, current.version, nil
	}

	next, ok := <-v.barrier
	if !ok {
		var t T
		return t, 0, ErrClosed
	}

	current := v.value.Load()

	v.barrier <- next

	if current != nil && current.version > version {
		return current.value, current.version, nil
	}

	select {
	case <-next.waiter:
		return next.value, next.version, nil
	case <-v.closed:
		var t T
		return t, 0, ErrClosed
	case <-ctx.Done():
		var t T
		return t, 0, ctx.Err()
	}
}

// GetAny returns the current value, waiting for the first one on an empty V.
func (v *V[T]) GetAny(ctx context.Context) (T, uint64, error) {
	if current := v.value.Load(); current != nil {
		return current.value, current.version, nil
	}

	next, ok := <-v.barrier
	if !ok {
		var t T
		return t, 0, ErrClosed
	}

	current := v.value.Load()

	v.barrier <- next

	if current != nil {
		return current.value, current.version, nil
	}

	select {
	case <-next.waiter:
		return next.value, next.version, nil
	case <-v.closed:
		var t T
		return t, 0, ErrClosed
	case <-ctx.Done():
		var t T
		return t, 0, ctx.Err()
	}
}

func (v *V[T]) Peek() (T, bool) {
	if current := v.value.Load(); current != nil {
		return current.value, true
	}
	return *new(T), false
}

func (v *V[T]) Set(t T) {
	v.UpdateOpt(func(_ T) (T, bool) {
		return t, true
	})
}

func (v *V[T]) UpdateOpt(f func(t T) (T, bool)) bool {
	next, ok := <-v.barrier
	if !ok {
		return false
	}

	if current := v.value.Load(); current != nil {
		if value, updated := f(current.value); updated {
			next.value = value
			next.version = current.version + 1
		} else {
			v.barrier <- next
			return false
		}
	} else {
		var t T
		if value, updated := f(t); updated {
			next.value = value
			next.version = 0
		} else {
			v.barrier <- next
			return false
		}
	}
	v.value.Store(&value[T]{next.value, next.version})

	close(next.waiter)

	v.barrier <- &version[T]{waiter: make(chan struct{})}

	return true
}

// Listen calls f with the current value and then with every update, until
// f fails, the context is done or V is closed.
func (v *V[T]) Listen(ctx context.Context, f func(t T) error) error {
	t, ver, err := v.GetAny(ctx)
	if err != nil {
		return err
	}
	if err := f(t); err != nil {
		return err
	}
	for {
		t, ver, err = v.Get(ctx, ver)
		if err != nil {
			return err
		}
		if err := f(t); err != nil {
			return err
		}
	}
}

// Close wakes up all waiters with ErrClosed. Later updates are dropped.
func (v *V[T]) Close() {
	_, ok := <-v.barrier
	if !ok {
		return
	}

	close(v.closed)
	close(v.barrier)
}
