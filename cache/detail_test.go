package cache_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-daybook/cache"
	"github.com/stretchr/testify/require"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestDetail(t *testing.T) {
	d := cache.NewDetail(itemKey)
	_, ok := d.Get()
	require.False(t, ok)
	require.False(t, d.Patch("1", func(i item) item { return i }))

	var seen []string
	sub := d.Subscribe(func(i item, ok bool) { seen = append(seen, i.Title) })

	d.Set(item{ID: "1", Title: "first"})
	require.True(t, d.Patch("1", func(i item) item {
		i.Title = "second"
		return i
	}))
	require.False(t, d.Patch("2", func(i item) item { return i }))

	got, ok := d.Lookup("1")
	require.True(t, ok)
	require.Equal(t, "second", got.Title)
	require.Equal(t, []string{"first", "second"}, seen)

	sub.Close()
	d.Set(item{ID: "1", Title: "third"})
	require.Len(t, seen, 2)

	d.Clear()
	_, ok = d.Lookup("1")
	require.False(t, ok)
}

func TestDetail_ClearNotifies(t *testing.T) {
	d := cache.NewDetail(itemKey)
	d.Set(item{ID: "1", Title: "first"})

	var held []bool
	sub := d.Subscribe(func(i item, ok bool) { held = append(held, ok) })
	defer sub.Close()

	d.Clear()
	require.Equal(t, []bool{false}, held)
}

func TestDetail_PatchAtRequiresCurrentVersion(t *testing.T) {
	d := cache.NewDetail(itemKey)
	d.Set(item{ID: "1", Title: "first"})
	v := d.Version()

	require.True(t, d.Patch("1", func(i item) item {
		i.Title = "patched"
		return i
	}))
	require.Equal(t, v, d.Version())

	d.Set(item{ID: "1", Title: "refetched"})
	require.NotEqual(t, v, d.Version())
	require.False(t, d.PatchAt(v, "1", func(i item) item {
		i.Title = "stale"
		return i
	}))
	got, _ := d.Lookup("1")
	require.Equal(t, "refetched", got.Title)
}

func TestListAndDetailAreLocations(t *testing.T) {
	var _ cache.Location[item] = cache.NewList[item](nil, itemKey)
	var _ cache.Location[item] = cache.NewDetail(itemKey)
}
