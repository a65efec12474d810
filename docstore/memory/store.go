// Package memory is an in-process docstore.Store. It keeps documents in
// insertion order and answers like a single-node search cluster: server
// errors carry the status a real cluster would return.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/wippyai/hostbridge/docstore"
	"github.com/wippyai/hostbridge/errors"
)

type index struct {
	docs  map[string]docstore.Document
	order []string
}

func (ix *index) put(id string, doc docstore.Document) {
	if _, exists := ix.docs[id]; !exists {
		ix.order = append(ix.order, id)
	}
	ix.docs[id] = cloneDoc(doc)
}

// Store is a thread-safe in-memory document store.
type Store struct {
	indices map[string]*index
	mu      sync.RWMutex
}

var _ docstore.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{indices: make(map[string]*index)}
}

func missingIndex(op, name string) error {
	return errors.Server(op, 404, "index_not_found_exception: no such index ["+name+"]")
}

// CreateIndex implements docstore.Store.
func (s *Store) CreateIndex(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return errors.Transport("create index", err)
	}
	if name == "" {
		return errors.Server("create index", 400, "invalid_index_name_exception: must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indices[name]; ok {
		return errors.Server("create index", 400, "resource_already_exists_exception: index ["+name+"] already exists")
	}
	s.indices[name] = &index{docs: make(map[string]docstore.Document)}
	return nil
}

// DeleteIndex implements docstore.Store.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return errors.Transport("delete index", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indices, name)
	return nil
}

// Index implements docstore.Store.
func (s *Store) Index(ctx context.Context, name string, doc docstore.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Transport("index", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, ok := s.indices[name]
	if !ok {
		return "", missingIndex("index", name)
	}
	id := uuid.NewString()
	ix.put(id, doc)
	return id, nil
}

// BulkIndex implements docstore.Store.
func (s *Store) BulkIndex(ctx context.Context, name string, docs []docstore.Document) error {
	if err := ctx.Err(); err != nil {
		return errors.Transport("bulk index", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, ok := s.indices[name]
	if !ok {
		return missingIndex("bulk index", name)
	}
	for _, doc := range docs {
		id, ok := docstore.DocumentID(doc)
		if !ok {
			id = uuid.NewString()
		}
		ix.put(id, doc)
	}
	return nil
}

// Delete implements docstore.Store.
func (s *Store) Delete(ctx context.Context, name, id string) error {
	if err := ctx.Err(); err != nil {
		return errors.Transport("delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, ok := s.indices[name]
	if !ok {
		return missingIndex("delete", name)
	}
	if _, ok := ix.docs[id]; !ok {
		return errors.Server("delete", 404, "document ["+id+"] not found")
	}
	delete(ix.docs, id)
	ix.order = slices.DeleteFunc(ix.order, func(v string) bool { return v == id })
	return nil
}

// DeleteAll implements docstore.Store.
func (s *Store) DeleteAll(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return errors.Transport("delete all", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, ok := s.indices[name]
	if !ok {
		return missingIndex("delete all", name)
	}
	ix.docs = make(map[string]docstore.Document)
	ix.order = nil
	return nil
}

// Search implements docstore.Store.
func (s *Store) Search(ctx context.Context, name string) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Transport("search", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ix, ok := s.indices[name]
	if !ok {
		return []docstore.Document{}, nil
	}
	out := make([]docstore.Document, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, cloneDoc(ix.docs[id]))
	}
	return out, nil
}

// Indices lists existing index names.
func (s *Store) Indices() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := slices.Collect(maps.Keys(s.indices))
	slices.Sort(names)
	return names
}
