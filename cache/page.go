package cache

import "context"

// Page is one page of a list endpoint. The JSON tags match the API envelope.
type Page[T any] struct {
	Items      []T `json:"data"`
	PageNumber int `json:"page"`
	TotalPages int `json:"totalPages"`
	TotalCount int `json:"totalCount"`
}

// HasMore reports whether pages remain after this one.
func (p Page[T]) HasMore() bool {
	return p.PageNumber < p.TotalPages
}

// Fetcher loads a single page. Page numbers start at 1.
type Fetcher[T any] func(ctx context.Context, page int) (*Page[T], error)

// Location is anywhere a cached record can be found by id and patched in
// place. Optimistic mutations write through it.
type Location[T any] interface {
	Lookup(id string) (T, bool)
	// Patch replaces every copy of id with fn applied to it and reports
	// whether any was found.
	Patch(id string, fn func(T) T) bool
	// Version changes whenever the location's contents are replaced
	// wholesale, such as by a reload. Patches do not change it.
	Version() uint64
	// PatchAt is Patch that does nothing unless the location is still at
	// version.
	PatchAt(version uint64, id string, fn func(T) T) bool
}
