package socialclient

import (
	"context"
	"sync"
	"time"

	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/anonto42/rehab-social/backend/pkg/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long a fetched conversation list counts as fresh.
const DefaultCacheTTL = 30 * time.Second

// ConversationLoader fetches the conversation list from the server.
type ConversationLoader interface {
	ListConversations(ctx context.Context) ([]models.ConversationSummary, error)
}

// CacheConfig configures a ConversationCache. Zero values get defaults.
type CacheConfig struct {
	Key          string // storage key, one per user
	TTL          time.Duration
	FetchTimeout time.Duration
	Clock        Clock
	Storage      Storage
	Logger       *zap.Logger
}

// ConversationCache serves a user's conversation list with a fixed TTL.
// Fresh hits return at once and refresh in the background; stale or missing
// entries are fetched synchronously from the primary loader, then the
// fallback. At most one fetch runs at a time.
type ConversationCache struct {
	key      string
	ttl      time.Duration
	timeout  time.Duration
	clock    Clock
	store    Storage
	log      *zap.Logger
	primary  func() ConversationLoader
	fallback ConversationLoader
	flight   singleflight.Group

	// gen counts writes from outside fetch; a fetch that raced with one does not store its result
	mu  sync.Mutex
	gen uint64
}

// NewConversationCache builds a cache. primary returns the current realtime
// loader, or nil when none is available.
func NewConversationCache(cfg CacheConfig, primary func() ConversationLoader, fallback ConversationLoader) *ConversationCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultRequestTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Storage == nil {
		cfg.Storage = NewMemoryStorage()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.L()
	}
	if primary == nil {
		primary = func() ConversationLoader { return nil }
	}
	return &ConversationCache{
		key:      cfg.Key,
		ttl:      cfg.TTL,
		timeout:  cfg.FetchTimeout,
		clock:    cfg.Clock,
		store:    cfg.Storage,
		log:      cfg.Logger,
		primary:  primary,
		fallback: fallback,
	}
}

// Get returns the cached list. It only fails with ErrLoadFailed when the
// server is unreachable and nothing, not even an expired entry, is cached.
func (c *ConversationCache) Get(ctx context.Context) ([]models.ConversationSummary, error) {
	entry, ok := c.load()
	if ok && c.fresh(entry) {
		c.refreshInBackground()
		return entry.Conversations, nil
	}

	ch := c.flight.DoChan(c.key, c.fetch)
	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.([]models.ConversationSummary), nil
		}
		if ok {
			c.log.Warn("Serving expired conversations after fetch failure", zap.String("key", c.key), zap.Error(res.Err))
			return entry.Conversations, nil
		}
		return nil, errors.Wrap(ErrLoadFailed, res.Err.Error())
	case <-ctx.Done():
		if ok {
			return entry.Conversations, nil
		}
		return nil, ctx.Err()
	}
}

// Put overwrites the entry with a list pushed by the server.
func (c *ConversationCache) Put(convs []models.ConversationSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.save(convs)
}

func (c *ConversationCache) save(convs []models.ConversationSummary) {
	if convs == nil {
		convs = []models.ConversationSummary{}
	}
	if err := c.store.Put(c.key, Entry{Conversations: convs, FetchedAt: c.clock.Now()}); err != nil {
		c.log.Warn("Could not store conversations", zap.String("key", c.key), zap.Error(err))
	}
}

// Expire keeps the entry as a fallback but forces the next Get to fetch.
func (c *ConversationCache) Expire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	entry, ok := c.load()
	if !ok {
		return
	}
	entry.FetchedAt = time.Time{}
	if err := c.store.Put(c.key, entry); err != nil {
		c.log.Warn("Could not expire conversations", zap.String("key", c.key), zap.Error(err))
	}
}

// Clear removes the entry entirely.
func (c *ConversationCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.store.Delete(c.key)
}

func (c *ConversationCache) fresh(e Entry) bool {
	return c.clock.Now().Sub(e.FetchedAt) < c.ttl
}

func (c *ConversationCache) load() (Entry, bool) {
	entry, ok, err := c.store.Get(c.key)
	if err != nil {
		c.log.Warn("Could not read cached conversations", zap.String("key", c.key), zap.Error(err))
		return Entry{}, false
	}
	return entry, ok
}

func (c *ConversationCache) refreshInBackground() {
	ch := c.flight.DoChan(c.key, c.fetch)
	go func() {
		if res := <-ch; res.Err != nil {
			c.log.Debug("Background conversation refresh failed", zap.String("key", c.key), zap.Error(res.Err))
		}
	}()
}

// fetch loads from the primary loader, then the fallback, and stores the result.
func (c *ConversationCache) fetch() (interface{}, error) {
	c.mu.Lock()
	start := c.gen
	c.mu.Unlock()

	var errs []error
	for _, loader := range []ConversationLoader{c.primary(), c.fallback} {
		if loader == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		convs, err := loader.ListConversations(ctx)
		cancel()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if convs == nil {
			convs = []models.ConversationSummary{}
		}
		if c.gen != start {
			// a push, expiry or clear landed while fetching
			if entry, ok := c.load(); ok && c.fresh(entry) {
				return entry.Conversations, nil
			}
			return convs, nil
		}
		c.save(convs)
		return convs, nil
	}
	if len(errs) == 0 {
		return nil, errors.New("no conversation loader available")
	}
	return nil, errs[len(errs)-1]
}
