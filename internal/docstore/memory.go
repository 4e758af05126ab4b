package docstore

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory keeps documents in process memory. Used for tests and single-instance dev runs.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key Key) (json.RawMessage, error) {
	if err := key.validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[key.Collection][key.ID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRaw(doc), nil
}

func (m *Memory) Set(ctx context.Context, key Key, doc json.RawMessage) error {
	if err := key.validate(); err != nil {
		return err
	}
	if err := checkObject(doc); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, doc)
	return nil
}

func (m *Memory) Create(ctx context.Context, key Key, doc json.RawMessage) error {
	if err := key.validate(); err != nil {
		return err
	}
	if err := checkObject(doc); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[key.Collection][key.ID]; ok {
		return ErrExists
	}
	m.put(key, doc)
	return nil
}

func (m *Memory) Update(ctx context.Context, key Key, fields map[string]any) error {
	if err := key.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.collections[key.Collection][key.ID]
	if !ok {
		return ErrNotFound
	}
	merged, err := mergeFields(existing, fields)
	if err != nil {
		return err
	}
	m.put(key, merged)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key Key) error {
	if err := key.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[key.Collection][key.ID]; !ok {
		return ErrNotFound
	}
	delete(m.collections[key.Collection], key.ID)
	return nil
}

func (m *Memory) List(ctx context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.collections[collection]
	out := make([]Document, 0, len(coll))
	for id, doc := range coll {
		out = append(out, Document{Key: Key{Collection: collection, ID: id}, Data: cloneRaw(doc)})
	}
	sortDocuments(out)
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

// put must be called with mu held.
func (m *Memory) put(key Key, doc []byte) {
	coll, ok := m.collections[key.Collection]
	if !ok {
		coll = make(map[string][]byte)
		m.collections[key.Collection] = coll
	}
	coll[key.ID] = cloneRaw(doc)
}
