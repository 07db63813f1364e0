package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbench/qbench/internal/events"
	"github.com/qbench/qbench/internal/store"
)

func resultOf(v string) *store.ResultSet {
	return &store.ResultSet{Columns: []string{"v"}, Rows: [][]interface{}{{v}}}
}

func TestViewCache_LoadCachesResult(t *testing.T) {
	c := NewViewCache(time.Minute)
	calls := 0
	load := func() (*store.ResultSet, error) {
		calls++
		return resultOf("a"), nil
	}

	rs, hit, err := c.Load("problems", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "a", rs.Rows[0][0])

	rs, hit, err = c.Load("problems", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "a", rs.Rows[0][0])
	assert.Equal(t, 1, calls)

	hits, misses, _ := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestViewCache_Expiry(t *testing.T) {
	c := NewViewCache(time.Second)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	calls := 0
	load := func() (*store.ResultSet, error) {
		calls++
		return resultOf("a"), nil
	}
	c.Load("v", load)
	now = now.Add(500 * time.Millisecond)
	c.Load("v", load)
	assert.Equal(t, 1, calls)

	now = now.Add(time.Second)
	c.Load("v", load)
	assert.Equal(t, 2, calls)
}

func TestViewCache_ZeroTTLNeverHits(t *testing.T) {
	c := NewViewCache(0)
	calls := 0
	load := func() (*store.ResultSet, error) {
		calls++
		return resultOf("a"), nil
	}
	c.Load("v", load)
	c.Load("v", load)
	assert.Equal(t, 2, calls)
}

func TestViewCache_LoadErrorNotCached(t *testing.T) {
	c := NewViewCache(time.Minute)
	_, _, err := c.Load("v", func() (*store.ResultSet, error) {
		return nil, errors.New("boom")
	})
	assert.Error(t, err)
	assert.Zero(t, c.Len())
}

func TestViewCache_InvalidateDuringLoad(t *testing.T) {
	c := NewViewCache(time.Minute)
	_, _, err := c.Load("v", func() (*store.ResultSet, error) {
		c.Invalidate()
		return resultOf("stale"), nil
	})
	require.NoError(t, err)
	assert.Zero(t, c.Len(), "a load racing an invalidation must not be stored")
}

func TestViewCache_Watch(t *testing.T) {
	c := NewViewCache(time.Minute)
	c.Load("v", func() (*store.ResultSet, error) { return resultOf("a"), nil })
	require.Equal(t, 1, c.Len())

	n := events.NewNotifier(4)
	sub := n.Subscribe("views")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Watch(sub.Ch)
	}()

	n.Publish(events.Event{Type: events.UploadCommitted, Subject: "problems"})
	n.Unsubscribe("views")
	wg.Wait()

	assert.Zero(t, c.Len())
	_, _, invalidations := c.Stats()
	assert.Equal(t, int64(1), invalidations)
}
