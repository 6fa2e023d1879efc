package history

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/nlpinitiative/discrimination-classifier/classifier"
)

// Retention used when none is configured
const (
	DefaultMaxEntries  = 200
	DefaultMaxSessions = 1000
)

// MemoryStore keeps history in process memory. Each session holds at most
// maxEntries; past maxSessions the least recently written session is dropped.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string][]Entry // Oldest first
	order       *list.List         // Session ids, least recently written at the front
	positions   map[string]*list.Element
	maxEntries  int
	maxSessions int
	now         func() time.Time
}

// NewMemoryStore creates a store bounded to maxEntries per session and
// maxSessions sessions
func NewMemoryStore(maxEntries, maxSessions int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &MemoryStore{
		sessions:    make(map[string][]Entry),
		order:       list.New(),
		positions:   make(map[string]*list.Element),
		maxEntries:  maxEntries,
		maxSessions: maxSessions,
		now:         time.Now,
	}
}

func (m *MemoryStore) Append(_ context.Context, sessionID string, result *classifier.ClassificationResult) (Entry, error) {
	entry := NewEntry(sessionID, result)
	entry.CreatedAt = m.now().UTC()
	m.insert(entry)
	return entry, nil
}

func (m *MemoryStore) insert(entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := append(m.sessions[entry.SessionID], entry)
	if over := len(entries) - m.maxEntries; over > 0 {
		entries = append([]Entry(nil), entries[over:]...)
	}
	m.sessions[entry.SessionID] = entries

	if elem, ok := m.positions[entry.SessionID]; ok {
		m.order.MoveToBack(elem)
		return
	}
	m.positions[entry.SessionID] = m.order.PushBack(entry.SessionID)
	for m.order.Len() > m.maxSessions {
		m.dropSession(m.order.Front().Value.(string))
	}
}

// dropSession must be called with mu held
func (m *MemoryStore) dropSession(sessionID string) {
	delete(m.sessions, sessionID)
	if elem, ok := m.positions[sessionID]; ok {
		m.order.Remove(elem)
		delete(m.positions, sessionID)
	}
}

// Sessions returns the number of sessions holding entries
func (m *MemoryStore) Sessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) List(_ context.Context, sessionID string, limit, offset int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.sessions[sessionID]
	if offset < 0 {
		offset = 0
	}
	remaining := len(entries) - offset
	if remaining <= 0 {
		return []Entry{}, nil
	}
	if limit <= 0 || limit > remaining {
		limit = remaining
	}
	out := make([]Entry, 0, limit)
	for i := remaining - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context, sessionID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions[sessionID]), nil
}

func (m *MemoryStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropSession(sessionID)
	return nil
}

func (m *MemoryStore) CleanupOlderThan(_ context.Context, age time.Duration) (int64, error) {
	cutoff := m.now().Add(-age)

	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, entries := range m.sessions {
		kept := entries[:0]
		for _, e := range entries {
			if e.CreatedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			m.dropSession(id)
		} else {
			m.sessions[id] = kept
		}
	}
	return removed, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
