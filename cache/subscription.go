package cache

import (
	"context"
	"sync"
	"sync/atomic"
)

// Subscription is the handle an observer holds on a list. Once closed it stops
// receiving state and its LoadMore does nothing, so a late trigger from a
// disposed view cannot reach the list.
type Subscription struct {
	closed   atomic.Bool
	once     sync.Once
	cancel   func()
	loadMore func(ctx context.Context) error
}

// LoadMore requests the next page. It is a no-op after Close.
func (s *Subscription) LoadMore(ctx context.Context) error {
	if s.closed.Load() || s.loadMore == nil {
		return nil
	}
	return s.loadMore(ctx)
}

// Close detaches the observer. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
	})
}

// Closed reports whether Close has been called.
func (s *Subscription) Closed() bool {
	return s.closed.Load()
}

type observers[S any] struct {
	mu     sync.Mutex
	nextID uint64
	fns    map[uint64]func(S)
}

func (o *observers[S]) add(fn func(S)) (cancel func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[uint64]func(S))
	}
	id := o.nextID
	o.nextID++
	o.fns[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.fns, id)
	}
}

func (o *observers[S]) notify(state S) {
	o.mu.Lock()
	fns := make([]func(S), 0, len(o.fns))
	for _, fn := range o.fns {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
