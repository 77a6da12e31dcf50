package agenda

import (
	"context"
	"sync"
)

// SyncLock serializes sync runs in the order they were requested.
//
// The lock is a ledger of completion channels: each caller appends its own
// channel behind the current tail and waits for the one before it. The slot
// is released when the task returns, errors or panics.
type SyncLock struct {
	mu      sync.Mutex
	tail    chan struct{}
	pending int
}

// NewSyncLock returns an idle lock.
func NewSyncLock() *SyncLock {
	return &SyncLock{}
}

// Do runs task once every earlier caller has settled.
// If ctx is cancelled while waiting, Do returns ctx.Err() without running task;
// later callers still wait for the caller ahead of the cancelled one.
func (l *SyncLock) Do(ctx context.Context, task func(ctx context.Context) error) error {
	prev, done := l.enqueue()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			go func() {
				<-prev
				l.release(done)
			}()
			return ctx.Err()
		}
	}

	defer l.release(done)
	return task(ctx)
}

// Pending reports the number of callers holding or waiting for the lock.
func (l *SyncLock) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

func (l *SyncLock) enqueue() (prev, done chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev = l.tail
	done = make(chan struct{})
	l.tail = done
	l.pending++
	return prev, done
}

func (l *SyncLock) release(done chan struct{}) {
	l.mu.Lock()
	l.pending--
	if l.tail == done {
		l.tail = nil
	}
	l.mu.Unlock()
	close(done)
}

// WithLock runs task under l and returns its outcome.
func WithLock[T any](ctx context.Context, l *SyncLock, task func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := l.Do(ctx, func(ctx context.Context) error {
		v, err := task(ctx)
		out = v
		return err
	})
	return out, err
}
