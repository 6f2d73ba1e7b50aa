package memory

import (
	"sync"
	"time"

	"ai-study-portal-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// SessionEntry is the cached unit for one session: its state plus the locks
// that serialise access to it. Lock the entry before touching Session.
type SessionEntry struct {
	sync.Mutex
	Session *store.Session

	flight sync.Mutex
}

func NewSessionEntry(s *store.Session) *SessionEntry {
	return &SessionEntry{Session: s}
}

// TryAcquire claims the single orchestration slot without blocking
func (e *SessionEntry) TryAcquire() bool {
	return e.flight.TryLock()
}

func (e *SessionEntry) Release() {
	e.flight.Unlock()
}

// SessionRepository keeps sessions in memory with a sliding expiry.
// Pinned entries (mid-orchestration) are never lost to expiry.
type SessionRepository struct {
	cache *cache.Cache

	mu     sync.Mutex
	pinned map[string]*SessionEntry
}

func NewSessionRepository(ttl, cleanupInterval time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &SessionRepository{
		cache:  cache.New(ttl, cleanupInterval),
		pinned: make(map[string]*SessionEntry),
	}
}

// OnEvicted registers fn to run whenever an entry leaves the cache
func (r *SessionRepository) OnEvicted(fn func(sessionID string)) {
	r.cache.OnEvicted(func(id string, _ interface{}) {
		fn(id)
	})
}

// Get returns the entry and pushes its expiry forward
func (r *SessionRepository) Get(sessionID string) (*SessionEntry, bool) {
	if x, found := r.cache.Get(sessionID); found {
		entry := x.(*SessionEntry)
		r.cache.Set(sessionID, entry, cache.DefaultExpiration)
		return entry, true
	}

	r.mu.Lock()
	entry, ok := r.pinned[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	r.cache.Set(sessionID, entry, cache.DefaultExpiration)
	return entry, true
}

// Add stores entry unless the id is already cached, and returns whichever entry won
func (r *SessionRepository) Add(sessionID string, entry *SessionEntry) *SessionEntry {
	if err := r.cache.Add(sessionID, entry, cache.DefaultExpiration); err == nil {
		return entry
	}
	if existing, ok := r.Get(sessionID); ok {
		return existing
	}
	r.cache.Set(sessionID, entry, cache.DefaultExpiration)
	return entry
}

func (r *SessionRepository) Pin(sessionID string, entry *SessionEntry) {
	r.mu.Lock()
	r.pinned[sessionID] = entry
	r.mu.Unlock()
}

func (r *SessionRepository) Unpin(sessionID string) {
	r.mu.Lock()
	delete(r.pinned, sessionID)
	r.mu.Unlock()
}

func (r *SessionRepository) Delete(sessionID string) {
	r.Unpin(sessionID)
	r.cache.Delete(sessionID)
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}

// DeleteExpired forces an eviction pass; the janitor does this periodically
func (r *SessionRepository) DeleteExpired() {
	r.cache.DeleteExpired()
}
