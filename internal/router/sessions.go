package router

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rednetexplorer/core/internal/sandbox"
)

// sessionEntry holds one session's value map plus LRU/expiry bookkeeping,
// the same TTL-LRU entry shape names.Cache uses for DNS records, applied
// instead to per-client session state.
type sessionEntry struct {
	values    map[string]string
	expiresAt time.Time
	elem      *list.Element
}

// SessionManager is a thread-safe TTL-LRU store of per-client session state,
// keyed by an opaque google/uuid id carried in a request cookie (spec §4.6
// step 5: "load the session identified by the request cookie, or create
// one").
type SessionManager struct {
	TTL        time.Duration // default 30m idle expiry
	MaxEntries int

	mu   sync.Mutex
	lru  *list.List
	data map[string]*sessionEntry
}

// NewSessionManager constructs a SessionManager with the given capacity.
func NewSessionManager(maxEntries int) *SessionManager {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	return &SessionManager{
		TTL:        30 * time.Minute,
		MaxEntries: maxEntries,
		lru:        list.New(),
		data:       make(map[string]*sessionEntry),
	}
}

// Load returns the session for id if present and unexpired, creating a
// fresh one (with a new id) otherwise.
func (m *SessionManager) Load(id string) sandbox.Session {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if e, ok := m.data[id]; ok && now.Before(e.expiresAt) {
			m.lru.MoveToBack(e.elem)
			return sandbox.Session{ID: id, Values: copyValues(e.values)}
		}
	}

	newID := uuid.NewString()
	e := &sessionEntry{values: make(map[string]string), expiresAt: now.Add(m.TTL)}
	e.elem = m.lru.PushBack(newID)
	m.data[newID] = e
	m.evictIfFull()
	return sandbox.Session{ID: newID, Values: make(map[string]string)}
}

// Save persists mutated session values after a successful sandbox
// invocation (spec §4.6 step 5: "persist session mutations").
func (m *SessionManager) Save(id string, values map[string]string) {
	if id == "" {
		return
	}
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.data[id]
	if !ok {
		e = &sessionEntry{}
		e.elem = m.lru.PushBack(id)
		m.data[id] = e
	} else {
		m.lru.MoveToBack(e.elem)
	}
	e.values = copyValues(values)
	e.expiresAt = now.Add(m.TTL)
	m.evictIfFull()
}

func (m *SessionManager) evictIfFull() {
	for len(m.data) > m.MaxEntries {
		front := m.lru.Front()
		if front == nil {
			return
		}
		key := front.Value.(string)
		m.lru.Remove(front)
		delete(m.data, key)
	}
}

// ExpireSweep removes expired sessions.
func (m *SessionManager) ExpireSweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.data {
		if now.After(e.expiresAt) {
			m.lru.Remove(e.elem)
			delete(m.data, id)
		}
	}
}

func copyValues(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
