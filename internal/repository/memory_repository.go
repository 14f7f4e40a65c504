package repository

import (
	"context"
	"sync"
	"time"

	"storefront-v2/internal/domain"
)

// MemoryDocumentStore is an in-process UserDocumentStore with the same
// semantics as the Postgres-backed one, including immediate-first-snapshot
// watches. Tests and offline runs use it in place of a live database.
type MemoryDocumentStore struct {
	mu       sync.Mutex
	docs     map[string]*domain.UserDocument
	watchers map[int]*memoryWatcher
	nextID   int

	// ForcedErr, when set, is returned by every operation. Tests use it to
	// exercise permission-denied and outage paths.
	ForcedErr error
}

type memoryWatcher struct {
	uid string
	ch  chan DocumentSnapshot
}

// NewMemoryDocumentStore creates an empty in-memory store
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs:     make(map[string]*domain.UserDocument),
		watchers: make(map[int]*memoryWatcher),
	}
}

func (m *MemoryDocumentStore) Get(ctx context.Context, uid string) (*domain.UserDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForcedErr != nil {
		return nil, m.ForcedErr
	}
	doc, ok := m.docs[uid]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return cloneDoc(doc), nil
}

func (m *MemoryDocumentStore) Create(ctx context.Context, doc *domain.UserDocument) error {
	m.mu.Lock()
	if m.ForcedErr != nil {
		m.mu.Unlock()
		return m.ForcedErr
	}
	stored := cloneDoc(doc)
	if stored.Orders == nil {
		stored.Orders = []domain.Order{}
	}
	if stored.Cart == nil {
		stored.Cart = []domain.CartItem{}
	}
	now := time.Now()
	stored.CreatedAt = now
	stored.LastLogin = now
	stored.LastUpdated = now
	m.docs[doc.UID] = stored
	m.mu.Unlock()

	m.notify(doc.UID)
	return nil
}

func (m *MemoryDocumentStore) Merge(ctx context.Context, uid string, patch DocumentPatch) error {
	m.mu.Lock()
	if m.ForcedErr != nil {
		m.mu.Unlock()
		return m.ForcedErr
	}
	doc, ok := m.docs[uid]
	if !ok {
		m.mu.Unlock()
		return ErrDocumentNotFound
	}
	if patch.Email != nil {
		doc.Email = *patch.Email
	}
	if patch.DisplayName != nil {
		doc.DisplayName = *patch.DisplayName
	}
	if patch.PhotoURL != nil {
		doc.PhotoURL = *patch.PhotoURL
	}
	if patch.TouchLastLogin {
		doc.LastLogin = time.Now()
	}
	doc.LastUpdated = time.Now()
	m.mu.Unlock()

	m.notify(uid)
	return nil
}

func (m *MemoryDocumentStore) SetCart(ctx context.Context, uid string, items []domain.CartItem) error {
	m.mu.Lock()
	if m.ForcedErr != nil {
		m.mu.Unlock()
		return m.ForcedErr
	}
	doc, ok := m.docs[uid]
	if !ok {
		m.mu.Unlock()
		return ErrDocumentNotFound
	}
	doc.Cart = domain.CloneItems(items)
	if doc.Cart == nil {
		doc.Cart = []domain.CartItem{}
	}
	doc.LastUpdated = time.Now()
	m.mu.Unlock()

	m.notify(uid)
	return nil
}

func (m *MemoryDocumentStore) Watch(ctx context.Context, uid string) (<-chan DocumentSnapshot, func(), error) {
	m.mu.Lock()
	if m.ForcedErr != nil {
		m.mu.Unlock()
		return nil, nil, m.ForcedErr
	}
	id := m.nextID
	m.nextID++
	w := &memoryWatcher{uid: uid, ch: make(chan DocumentSnapshot, 8)}
	m.watchers[id] = w
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			// Deregister and close under the same lock every send holds,
			// so no snapshot can land on the closed channel.
			m.mu.Lock()
			delete(m.watchers, id)
			close(w.ch)
			m.mu.Unlock()
		})
	}

	// Immediate first snapshot
	m.mu.Lock()
	m.sendLocked(w)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return w.ch, cancel, nil
}

// notify pushes a fresh snapshot to every watcher of the uid
func (m *MemoryDocumentStore) notify(uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.watchers {
		if w.uid == uid {
			m.sendLocked(w)
		}
	}
}

// sendLocked delivers the current state to one registered watcher. Callers must
// hold m.mu, which is what excludes a concurrent cancel closing the channel.
func (m *MemoryDocumentStore) sendLocked(w *memoryWatcher) {
	snap := DocumentSnapshot{UID: w.uid}
	if doc, ok := m.docs[w.uid]; ok {
		snap.Exists = true
		snap.Doc = cloneDoc(doc)
	}

	select {
	case w.ch <- snap:
	default:
		// Watcher is not draining; drop rather than block mutation paths.
	}
}

func cloneDoc(doc *domain.UserDocument) *domain.UserDocument {
	out := *doc
	out.Cart = domain.CloneItems(doc.Cart)
	if doc.Orders != nil {
		out.Orders = make([]domain.Order, len(doc.Orders))
		copy(out.Orders, doc.Orders)
	}
	return &out
}
