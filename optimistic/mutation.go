// Package optimistic applies a change to cached records before the server has
// confirmed it, then reconciles with the server's answer or rolls back.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-daybook/cache"
	"github.com/rs/zerolog/log"
)

// ErrInFlight is returned when a mutation for the same id is still running.
var ErrInFlight = errors.New("mutation already in flight")

// Guard admits one mutation per id at a time. Mutations of the same entity
// kind should share a Guard.
type Guard struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{ids: map[string]struct{}{}}
}

func (g *Guard) acquire(id string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.ids[id]; busy {
		return nil, false
	}
	g.ids[id] = struct{}{}
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.ids, id)
	}, true
}

// Mutation describes one kind of optimistic change to records of type T
// driven by a patch of type P.
type Mutation[T any, P any] struct {
	// Apply returns the record with the patch applied. It must not block.
	Apply func(T, P) T
	// Write sends the patch to the server. A non-nil result is the
	// authoritative record and replaces the optimistic one.
	Write func(ctx context.Context, id string, patch P) (*T, error)
	// Locations are every cache the record may be held in.
	Locations []cache.Location[T]
	// Guard is shared with other mutations of the same records. A nil Guard
	// gives this mutation its own.
	Guard *Guard

	once  sync.Once
	guard *Guard
}

type touched[T any] struct {
	loc     cache.Location[T]
	version uint64
	prev    T
}

// Run patches every location holding id, performs the write, and then either
// reconciles the locations with the server's record or restores them, in
// reverse order, to what they held before. A location reloaded while the write
// was outstanding already holds fresher data and is left alone. The write
// error is returned to the caller only.
func (m *Mutation[T, P]) Run(ctx context.Context, id string, patch P) error {
	release, ok := m.getGuard().acquire(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInFlight, id)
	}
	defer release()

	var applied []touched[T]
	for _, loc := range m.Locations {
		var prev T
		version := loc.Version()
		if loc.PatchAt(version, id, func(cur T) T {
			prev = cur
			return m.Apply(cur, patch)
		}) {
			applied = append(applied, touched[T]{loc: loc, version: version, prev: prev})
		}
	}

	result, err := m.write(ctx, id, patch)
	if err != nil {
		for i := len(applied) - 1; i >= 0; i-- {
			t := applied[i]
			if !t.loc.PatchAt(t.version, id, func(T) T { return t.prev }) {
				log.Debug().Str("id", id).Msg("skipping rollback of a reloaded location")
			}
		}
		log.Debug().Err(err).Str("id", id).Msg("optimistic update rolled back")
		return err
	}

	if result != nil {
		for _, t := range applied {
			t.loc.PatchAt(t.version, id, func(T) T { return *result })
		}
	}
	return nil
}

func (m *Mutation[T, P]) getGuard() *Guard {
	if m.Guard != nil {
		return m.Guard
	}
	m.once.Do(func() { m.guard = NewGuard() })
	return m.guard
}

// write turns a panicking Write into an error so that the rollback still runs.
func (m *Mutation[T, P]) write(ctx context.Context, id string, patch P) (result *T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("write %s panicked: %v", id, r)
		}
	}()
	return m.Write(ctx, id, patch)
}
