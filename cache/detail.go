package cache

import "sync"

// Detail holds a single record shown outside any list, such as an opened post
// or a profile page.
type Detail[T any] struct {
	key func(T) string

	mu      sync.Mutex
	value   T
	set     bool
	version uint64

	observers observers[detailState[T]]
}

type detailState[T any] struct {
	value T
	set   bool
}

func NewDetail[T any](key func(T) string) *Detail[T] {
	return &Detail[T]{key: key}
}

// Get returns the record and whether one is held.
func (d *Detail[T]) Get() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value, d.set
}

// Set replaces the record.
func (d *Detail[T]) Set(v T) {
	d.mu.Lock()
	d.value, d.set = v, true
	d.version++
	d.mu.Unlock()
	d.observers.notify(detailState[T]{value: v, set: true})
}

// Clear forgets the record.
func (d *Detail[T]) Clear() {
	d.mu.Lock()
	var zero T
	d.value, d.set = zero, false
	d.version++
	d.mu.Unlock()
	d.observers.notify(detailState[T]{})
}

func (d *Detail[T]) Lookup(id string) (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.set && d.key(d.value) == id {
		return d.value, true
	}
	var zero T
	return zero, false
}

func (d *Detail[T]) Patch(id string, fn func(T) T) bool {
	d.mu.Lock()
	return d.patch(id, fn)
}

// Version counts Set and Clear calls.
func (d *Detail[T]) Version() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

func (d *Detail[T]) PatchAt(version uint64, id string, fn func(T) T) bool {
	d.mu.Lock()
	if d.version != version {
		d.mu.Unlock()
		return false
	}
	return d.patch(id, fn)
}

// patch is called with mu held and releases it.
func (d *Detail[T]) patch(id string, fn func(T) T) bool {
	if !d.set || d.key(d.value) != id {
		d.mu.Unlock()
		return false
	}
	d.value = fn(d.value)
	v := d.value
	d.mu.Unlock()
	d.observers.notify(detailState[T]{value: v, set: true})
	return true
}

// Subscribe calls fn after every change to the record until closed. ok is
// false once the record has been cleared.
func (d *Detail[T]) Subscribe(fn func(v T, ok bool)) *Subscription {
	sub := &Subscription{}
	sub.cancel = d.observers.add(func(s detailState[T]) {
		if !sub.Closed() {
			fn(s.value, s.set)
		}
	})
	return sub
}
