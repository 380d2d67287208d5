package docstore

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemoryStore keeps documents in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(s.data[collection], id)
}

func (s *MemoryStore) List(_ context.Context, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return list(s.data[collection], collection), nil
}

func (s *MemoryStore) Put(_ context.Context, collection, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	put(s.data, collection, id, data)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[collection], id)
	return nil
}

// Update works on a copy of the touched collections and swaps them in on success
func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{base: s.data, staged: make(map[string]map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	for collection, docs := range tx.staged {
		s.data[collection] = docs
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

type memoryTx struct {
	base   map[string]map[string][]byte
	staged map[string]map[string][]byte
}

func (t *memoryTx) view(collection string) map[string][]byte {
	if docs, ok := t.staged[collection]; ok {
		return docs
	}
	return t.base[collection]
}

func (t *memoryTx) writable(collection string) map[string][]byte {
	docs, ok := t.staged[collection]
	if !ok {
		docs = maps.Clone(t.base[collection])
		if docs == nil {
			docs = make(map[string][]byte)
		}
		t.staged[collection] = docs
	}
	return docs
}

func (t *memoryTx) Get(_ context.Context, collection, id string) ([]byte, error) {
	return get(t.view(collection), id)
}

func (t *memoryTx) List(_ context.Context, collection string) ([]Document, error) {
	return list(t.view(collection), collection), nil
}

func (t *memoryTx) Put(_ context.Context, collection, id string, data []byte) error {
	t.writable(collection)[id] = slices.Clone(data)
	return nil
}

func (t *memoryTx) Delete(_ context.Context, collection, id string) error {
	delete(t.writable(collection), id)
	return nil
}

func get(docs map[string][]byte, id string) ([]byte, error) {
	doc, ok := docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(doc), nil
}

func list(docs map[string][]byte, collection string) []Document {
	ids := slices.Sorted(maps.Keys(docs))
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, Document{Collection: collection, ID: id, Data: slices.Clone(docs[id])})
	}
	return out
}

func put(data map[string]map[string][]byte, collection, id string, doc []byte) {
	docs, ok := data[collection]
	if !ok {
		docs = make(map[string][]byte)
		data[collection] = docs
	}
	docs[id] = slices.Clone(doc)
}
