package socialclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeLoader struct {
	mu    sync.Mutex
	calls int
	convs []models.ConversationSummary
	err   error
	gate  chan struct{}
}

func (f *fakeLoader) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	f.mu.Lock()
	f.calls++
	convs, err, gate := f.convs, f.err, f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return convs, err
}

func (f *fakeLoader) set(convs []models.ConversationSummary, err error) {
	f.mu.Lock()
	f.convs, f.err = convs, err
	f.mu.Unlock()
}

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func convsWith(lastMessage string) []models.ConversationSummary {
	return []models.ConversationSummary{{
		OtherUser:   models.UserSummary{ID: 2, Name: "bob", Avatar: "B"},
		LastMessage: lastMessage,
		UnreadCount: 1,
	}}
}

type cacheFixture struct {
	cache    *ConversationCache
	clock    *fakeClock
	store    *MemoryStorage
	primary  *fakeLoader
	fallback *fakeLoader
}

func newCacheFixture(withPrimary bool) *cacheFixture {
	f := &cacheFixture{
		clock:    newFakeClock(),
		store:    NewMemoryStorage(),
		primary:  &fakeLoader{},
		fallback: &fakeLoader{},
	}
	primary := func() ConversationLoader {
		if !withPrimary {
			return nil
		}
		return f.primary
	}
	f.cache = NewConversationCache(CacheConfig{
		Key:          "1",
		TTL:          30 * time.Second,
		FetchTimeout: time.Second,
		Clock:        f.clock,
		Storage:      f.store,
	}, primary, f.fallback)
	return f
}

func TestCacheMissFetchesFromPrimary(t *testing.T) {
	f := newCacheFixture(true)
	f.primary.set(convsWith("from realtime"), nil)

	got, err := f.cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from realtime", got[0].LastMessage)
	assert.Equal(t, 1, f.primary.callCount())
	assert.Equal(t, 0, f.fallback.callCount())

	entry, ok, err := f.store.Get("1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.clock.Now(), entry.FetchedAt)
}

func TestCacheFallsBackToSecondaryLoader(t *testing.T) {
	t.Run("primary fails", func(t *testing.T) {
		f := newCacheFixture(true)
		f.primary.set(nil, ErrTimeout)
		f.fallback.set(convsWith("from rest"), nil)

		got, err := f.cache.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "from rest", got[0].LastMessage)
		assert.Equal(t, 1, f.primary.callCount())
	})

	t.Run("no primary", func(t *testing.T) {
		f := newCacheFixture(false)
		f.fallback.set(convsWith("from rest"), nil)

		got, err := f.cache.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "from rest", got[0].LastMessage)
		assert.Equal(t, 0, f.primary.callCount())
	})

	t.Run("empty list is cached, not nil", func(t *testing.T) {
		f := newCacheFixture(true)
		got, err := f.cache.Get(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestCacheFreshHitRefreshesInBackground(t *testing.T) {
	f := newCacheFixture(true)
	f.cache.Put(convsWith("cached"))
	f.primary.set(convsWith("refreshed"), nil)

	got, err := f.cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached", got[0].LastMessage)

	assert.Eventually(t, func() bool {
		entry, _, _ := f.store.Get("1")
		return f.primary.callCount() == 1 && entry.Conversations[0].LastMessage == "refreshed"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCacheStaleEntryIsRefetched(t *testing.T) {
	f := newCacheFixture(true)
	f.cache.Put(convsWith("old"))
	f.clock.Advance(31 * time.Second)
	f.primary.set(convsWith("new"), nil)

	got, err := f.cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", got[0].LastMessage)
}

func TestCacheExpireForcesFetch(t *testing.T) {
	f := newCacheFixture(true)
	f.cache.Put(convsWith("old"))
	f.cache.Expire()
	f.primary.set(convsWith("new"), nil)

	got, err := f.cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", got[0].LastMessage)
}

func TestCacheTotalFailure(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("serves expired entry", func(t *testing.T) {
		f := newCacheFixture(true)
		f.cache.Put(convsWith("stale but useful"))
		f.clock.Advance(time.Hour)
		f.primary.set(nil, boom)
		f.fallback.set(nil, boom)

		got, err := f.cache.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "stale but useful", got[0].LastMessage)
	})

	t.Run("nothing cached", func(t *testing.T) {
		f := newCacheFixture(true)
		f.primary.set(nil, boom)
		f.fallback.set(nil, boom)

		_, err := f.cache.Get(context.Background())
		require.ErrorIs(t, err, ErrLoadFailed)
	})
}

func TestCacheConcurrentMissesShareOneFetch(t *testing.T) {
	f := newCacheFixture(true)
	gate := make(chan struct{})
	f.primary.gate = gate
	f.primary.set(convsWith("shared"), nil)

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]models.ConversationSummary, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := f.cache.Get(context.Background())
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}

	require.Eventually(t, func() bool { return f.primary.callCount() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, 1, f.primary.callCount())
	for _, got := range results {
		require.Len(t, got, 1)
		assert.Equal(t, "shared", got[0].LastMessage)
	}
}

func TestCachePutOverwritesWithoutFetching(t *testing.T) {
	f := newCacheFixture(false)
	f.cache.Put(convsWith("first"))
	f.cache.Put(convsWith("pushed"))

	entry, ok, err := f.store.Get("1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pushed", entry.Conversations[0].LastMessage)
	assert.Equal(t, 0, f.fallback.callCount())

	require.NoError(t, f.cache.Clear())
	_, ok, _ = f.store.Get("1")
	assert.False(t, ok)
}
