// internal/store/memory.go
package store

import (
	"context"
	"sync"

	"github.com/jmulder/tunequiz/internal/models"
)

// MemoryStore is an in-process Store used for solo/demo play and tests. It
// implements the same semantics as the Redis-backed store: atomic field-map
// updates and ordered whole-document snapshot delivery.
type MemoryStore struct {
	mu        sync.Mutex
	docs      map[string]map[string]any
	subs      map[string]map[int]SnapshotFunc
	nextSubID int

	// delivery serializes snapshot fan-out per session, so subscribers see
	// commits in commit order while the store-wide mutex is never held
	// across a callback. A slow subscriber stalls only its own session.
	delivery map[string]*sync.Mutex
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]map[string]any),
		subs:     make(map[string]map[int]SnapshotFunc),
		delivery: make(map[string]*sync.Mutex),
	}
}

func (m *MemoryStore) deliveryLock(code string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delivery[code] == nil {
		m.delivery[code] = &sync.Mutex{}
	}
	return m.delivery[code]
}

func (m *MemoryStore) Create(ctx context.Context, code string, doc *models.Session) error {
	dl := m.deliveryLock(code)
	dl.Lock()
	defer dl.Unlock()

	m.mu.Lock()
	if _, exists := m.docs[code]; exists {
		m.mu.Unlock()
		return ErrCodeExists
	}
	encoded, err := encodeSession(doc)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.docs[code] = encoded
	snap, fns := m.snapshotLocked(code)
	m.mu.Unlock()

	deliver(snap, fns)
	return nil
}

func (m *MemoryStore) Read(ctx context.Context, code string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[code]
	if !ok {
		return nil, ErrNotFound
	}
	return decodeSession(doc)
}

func (m *MemoryStore) Update(ctx context.Context, code string, fields map[string]any) error {
	dl := m.deliveryLock(code)
	dl.Lock()
	defer dl.Unlock()

	m.mu.Lock()
	doc, ok := m.docs[code]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	// Mutate a copy and swap it in whole, so a failed write never leaves a
	// partially updated document behind.
	next, err := cloneDoc(doc)
	if err == nil {
		err = applyFields(next, fields)
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.docs[code] = next
	snap, fns := m.snapshotLocked(code)
	m.mu.Unlock()

	deliver(snap, fns)
	return nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, code string, fn SnapshotFunc) (func(), error) {
	dl := m.deliveryLock(code)
	dl.Lock()
	defer dl.Unlock()

	m.mu.Lock()
	if m.subs[code] == nil {
		m.subs[code] = make(map[int]SnapshotFunc)
	}
	id := m.nextSubID
	m.nextSubID++
	m.subs[code][id] = fn

	// Late subscribers start from the current document.
	var current *models.Session
	if doc, ok := m.docs[code]; ok {
		if s, err := decodeSession(doc); err == nil {
			current = s
		}
	}
	m.mu.Unlock()

	if current != nil {
		fn(current)
	}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[code], id)
	}, nil
}

// snapshotLocked decodes the committed document and collects its subscribers.
// Must be called with m.mu held.
func (m *MemoryStore) snapshotLocked(code string) (*models.Session, []SnapshotFunc) {
	subs := m.subs[code]
	if len(subs) == 0 {
		return nil, nil
	}
	s, err := decodeSession(m.docs[code])
	if err != nil {
		return nil, nil
	}
	fns := make([]SnapshotFunc, 0, len(subs))
	for _, fn := range subs {
		fns = append(fns, fn)
	}
	return s, fns
}

// deliver fans the snapshot out, each subscriber getting its own copy. The
// caller holds the per-session delivery lock, which is what keeps fan-out
// ordered across commits.
func deliver(snap *models.Session, fns []SnapshotFunc) {
	if snap == nil {
		return
	}
	for _, fn := range fns {
		fn(snap.Clone())
	}
}
