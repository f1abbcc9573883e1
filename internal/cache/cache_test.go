package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedEntry struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

// Tests in this file share the package-level client, so they do not run in parallel.
func withMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		_ = client.Close()
		client = nil
	})
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	withMiniRedis(t)
	ctx := context.Background()

	fetches := 0
	fetch := func(dest *cachedEntry) func() error {
		return func() error {
			fetches++
			*dest = cachedEntry{ID: 1, Title: "West Lake"}
			return nil
		}
	}

	var first cachedEntry
	require.NoError(t, Aside(ctx, EntryKey(1), &first, time.Minute, fetch(&first)))
	assert.Equal(t, "West Lake", first.Title)

	var second cachedEntry
	require.NoError(t, Aside(ctx, EntryKey(1), &second, time.Minute, fetch(&second)))
	assert.Equal(t, "West Lake", second.Title)
	assert.Equal(t, 1, fetches, "second read must be served from cache")
}

func TestAside_InvalidateForcesRefetch(t *testing.T) {
	withMiniRedis(t)
	ctx := context.Background()

	fetches := 0
	var e cachedEntry
	fetch := func() error {
		fetches++
		e = cachedEntry{ID: 2, Title: "Huangshan"}
		return nil
	}

	require.NoError(t, Aside(ctx, EntryKey(2), &e, time.Minute, fetch))
	InvalidateEntry(ctx, 2)
	require.NoError(t, Aside(ctx, EntryKey(2), &e, time.Minute, fetch))
	assert.Equal(t, 2, fetches)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := withMiniRedis(t)
	ctx := context.Background()

	wantErr := errors.New("record not found")
	var e cachedEntry
	err := Aside(ctx, EntryKey(3), &e, time.Minute, func() error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, mr.Exists(EntryKey(3)))
}

func TestAside_NoClientFallsThrough(t *testing.T) {
	client = nil
	var e cachedEntry
	err := Aside(context.Background(), EntryKey(4), &e, time.Minute, func() error {
		e.ID = 4
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint(4), e.ID)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "entry:9", EntryKey(9))
	assert.Equal(t, "user:3", UserKey(3))
}
