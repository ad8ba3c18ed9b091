// Package cache holds the paginated and single record caches the journal
// screens are built on.
package cache

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// ListState is a snapshot of a List.
type ListState[T any] struct {
	Items       []T
	Loading     bool // first page in flight
	LoadingMore bool // a later page in flight
	HasMore     bool
	Err         error
}

// List is an infinite list over a paginated endpoint. Pages are fetched in
// order, one at a time, and merged into a single de-duplicated slice.
//
// When the same key appears on more than one page the item keeps the position
// where it was first seen and takes the value it was last seen with, because
// the result set can shift while it is being paged through.
type List[T any] struct {
	fetch Fetcher[T]
	key   func(T) string

	mu          sync.Mutex
	generation  uint64
	pages       []Page[T]
	items       []T
	index       map[string]int
	loading     bool
	loadingMore bool
	hasMore     bool
	err         error

	observers observers[ListState[T]]
}

// NewList creates an empty list. Nothing is fetched until LoadMore or Reload.
func NewList[T any](fetch Fetcher[T], key func(T) string) *List[T] {
	return &List[T]{
		fetch:   fetch,
		key:     key,
		index:   map[string]int{},
		hasMore: true,
	}
}

// State returns a snapshot that is safe to keep.
func (l *List[T]) State() ListState[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

func (l *List[T]) snapshot() ListState[T] {
	items := make([]T, len(l.items))
	copy(items, l.items)
	return ListState[T]{
		Items:       items,
		Loading:     l.loading,
		LoadingMore: l.loadingMore,
		HasMore:     l.hasMore,
		Err:         l.err,
	}
}

// LoadMore fetches the next page. It returns nil without fetching while
// another fetch is outstanding or once the last page has been seen. A fetch
// whose list was reloaded in the meantime is discarded.
func (l *List[T]) LoadMore(ctx context.Context) error {
	l.mu.Lock()
	if l.loading || l.loadingMore || !l.hasMore {
		l.mu.Unlock()
		return nil
	}
	next := len(l.pages) + 1
	if next == 1 {
		l.loading = true
	} else {
		l.loadingMore = true
	}
	gen := l.generation
	state := l.snapshot()
	l.mu.Unlock()
	l.observers.notify(state)

	page, err := l.fetch(ctx, next)

	l.mu.Lock()
	if gen != l.generation {
		l.mu.Unlock()
		log.Debug().Int("page", next).Msg("discarding page from a reloaded list")
		return nil
	}
	l.loading, l.loadingMore = false, false
	if err != nil {
		l.err = err
	} else {
		l.err = nil
		l.appendPage(page, next)
	}
	state = l.snapshot()
	l.mu.Unlock()
	l.observers.notify(state)
	return err
}

// Reload drops every page and the error immediately, then fetches page 1.
func (l *List[T]) Reload(ctx context.Context) error {
	l.mu.Lock()
	l.generation++
	l.pages = nil
	l.items = nil
	l.index = map[string]int{}
	l.loading, l.loadingMore = false, false
	l.hasMore = true
	l.err = nil
	state := l.snapshot()
	l.mu.Unlock()
	l.observers.notify(state)

	return l.LoadMore(ctx)
}

func (l *List[T]) appendPage(page *Page[T], number int) {
	if page == nil {
		page = &Page[T]{PageNumber: number, TotalPages: number}
	}
	stored := Page[T]{
		Items:      append([]T(nil), page.Items...),
		PageNumber: page.PageNumber,
		TotalPages: page.TotalPages,
		TotalCount: page.TotalCount,
	}
	if stored.PageNumber == 0 {
		stored.PageNumber = number
	}
	l.pages = append(l.pages, stored)
	l.hasMore = stored.HasMore()
	l.merge()
}

// merge rebuilds items from pages. Caller holds mu.
func (l *List[T]) merge() {
	l.items = l.items[:0]
	l.index = make(map[string]int, len(l.index))
	for _, p := range l.pages {
		for _, item := range p.Items {
			k := l.key(item)
			if i, ok := l.index[k]; ok {
				l.items[i] = item
				continue
			}
			l.index[k] = len(l.items)
			l.items = append(l.items, item)
		}
	}
}

// Lookup returns the merged item for id.
func (l *List[T]) Lookup(id string) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i, ok := l.index[id]; ok {
		return l.items[i], true
	}
	var zero T
	return zero, false
}

// Patch applies fn to every copy of id across the fetched pages.
func (l *List[T]) Patch(id string, fn func(T) T) bool {
	l.mu.Lock()
	return l.patch(id, fn)
}

// Version returns the reload generation.
func (l *List[T]) Version() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

// PatchAt patches id only if the list has not been reloaded since version.
func (l *List[T]) PatchAt(version uint64, id string, fn func(T) T) bool {
	l.mu.Lock()
	if l.generation != version {
		l.mu.Unlock()
		return false
	}
	return l.patch(id, fn)
}

// patch is called with mu held and releases it.
func (l *List[T]) patch(id string, fn func(T) T) bool {
	if _, ok := l.index[id]; !ok {
		l.mu.Unlock()
		return false
	}
	for pi := range l.pages {
		items := l.pages[pi].Items
		for i := range items {
			if l.key(items[i]) == id {
				items[i] = fn(items[i])
			}
		}
	}
	l.merge()
	state := l.snapshot()
	l.mu.Unlock()
	l.observers.notify(state)
	return true
}

// Subscribe calls fn with the current state and again after every change
// until the subscription is closed. The subscription's LoadMore pages this
// list.
func (l *List[T]) Subscribe(fn func(ListState[T])) *Subscription {
	sub := &Subscription{loadMore: l.LoadMore}
	sub.cancel = l.observers.add(func(s ListState[T]) {
		if !sub.Closed() {
			fn(s)
		}
	})
	fn(l.State())
	return sub
}
