package socialclient

import (
	"sync"
	"time"

	"github.com/anonto42/rehab-social/backend/internal/models"
)

// Entry is a cached conversation list and when it was fetched.
type Entry struct {
	Conversations []models.ConversationSummary `json:"conversations"`
	FetchedAt     time.Time                    `json:"fetchedAt"`
}

// Storage persists cache entries by key. Implementations must be safe for concurrent use.
type Storage interface {
	Get(key string) (Entry, bool, error)
	Put(key string, entry Entry) error
	Delete(key string) error
	Close() error
}

// MemoryStorage keeps entries in process memory
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]Entry)}
}

func (m *MemoryStorage) Get(key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *MemoryStorage) Put(key string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStorage) Close() error { return nil }
