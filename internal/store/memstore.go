package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemStore is the in-process reference backend: documents in a map,
// change fan-out via the shared notifier. It is the store used by the
// server by default and by every engine test.
type MemStore struct {
	mu       sync.Mutex
	docs     map[string]*memDoc
	notifier *notifier
}

type memDoc struct {
	data     map[string]any
	revision int64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		docs:     make(map[string]*memDoc),
		notifier: newNotifier(),
	}
}

func (m *MemStore) Create(_ context.Context, id string, doc any) (Snapshot, error) {
	data, err := toDoc(doc)
	if err != nil {
		return Snapshot{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrExists, id)
	}
	m.docs[id] = &memDoc{data: data, revision: 1}
	return m.snapshotLocked(id)
}

func (m *MemStore) Get(_ context.Context, id string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(id)
}

func (m *MemStore) Apply(_ context.Context, id string, update Update) (Snapshot, error) {
	m.mu.Lock()
	doc, ok := m.docs[id]
	if !ok {
		m.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	// Updates land on a copy so a failing op cannot leave earlier ops
	// of the same batch committed at the old revision.
	next, err := cloneDoc(doc.data)
	if err != nil {
		m.mu.Unlock()
		return Snapshot{}, err
	}
	if err := applyUpdate(next, update); err != nil {
		m.mu.Unlock()
		return Snapshot{}, err
	}
	doc.data = next
	doc.revision++

	snap, err := m.snapshotLocked(id)
	m.mu.Unlock()
	if err != nil {
		return Snapshot{}, err
	}

	m.notifier.publish(id, snap)
	return snap, nil
}

func (m *MemStore) Subscribe(ctx context.Context, id string) (<-chan Snapshot, func(), error) {
	m.mu.Lock()
	snap, err := m.snapshotLocked(id)
	m.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	ch, cancel := m.notifier.subscribe(ctx, id, snap)
	return ch, cancel, nil
}

func (m *MemStore) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemStore) snapshotLocked(id string) (Snapshot, error) {
	doc, ok := m.docs[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	raw, err := json.Marshal(doc.data)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{ID: id, Revision: doc.revision, Data: raw}, nil
}

func cloneDoc(data map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toDoc(doc any) (map[string]any, error) {
	normalized, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	data, ok := normalized.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("store: document must be a JSON object")
	}
	return data, nil
}
