// Package memkv is a process-local, goroutine-safe IndexBackend suitable for tests and for
// small single-process deployments, the way the teacher's MemoryStorage (memorystorage.go) backs
// EntStorage for tests.
package memkv

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rsms/derefmap"
)

// Store holds every forward/backward table opened against it, each as its own table. A
// single Store can back any number of DerefMap indexes.
type Store struct {
	mu     sync.Mutex
	tables map[string]*table
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{tables: make(map[string]*table)}
}

func (s *Store) OpenForward(ctx context.Context, indexName string) (derefmap.IndexBackend, error) {
	return s.open("deref-forward-" + indexName), nil
}

func (s *Store) OpenBackward(ctx context.Context, indexName string) (derefmap.IndexBackend, error) {
	return s.open("deref-backward-" + indexName), nil
}

func (s *Store) DropForward(ctx context.Context, indexName string) error {
	return s.drop("deref-forward-" + indexName)
}

func (s *Store) DropBackward(ctx context.Context, indexName string) error {
	return s.drop("deref-backward-" + indexName)
}

func (s *Store) open(name string) *table {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		t = &table{rows: make(map[string][]byte)}
		s.tables[name] = t
	}
	return t
}

func (s *Store) drop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; !ok {
		return derefmap.ErrIndexNotFound
	}
	delete(s.tables, name)
	return nil
}

// table is one forward or backward table: an ordered map from key to value, keyed by the raw
// bytes of the composite key. Adapted from the teacher's scopedMap (memorystorage.go), dropping
// the prototypal outer-scope chaining since a table here is never forked mid-transaction — each
// DerefMap operation issues its AddEntry/RemoveEntry calls directly and relies on external
// per-record locking (§5), the same way the teacher relies on MemoryStorage.mu.
type table struct {
	mu   sync.RWMutex
	rows map[string][]byte
}

func (t *table) AddEntry(ctx context.Context, entry derefmap.IndexEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[string(entry.Key)] = entry.Value
	return nil
}

func (t *table) RemoveEntry(ctx context.Context, key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows, string(key))
	return nil
}

func (t *table) PerformQuery(ctx context.Context, keyPrefix []byte) (derefmap.BackendCursor, error) {
	prefix := string(keyPrefix)
	t.mu.RLock()
	defer t.mu.RUnlock()

	var rows []derefmap.IndexEntry
	for k, v := range t.rows {
		if strings.HasPrefix(k, prefix) {
			rows = append(rows, derefmap.IndexEntry{Key: []byte(k), Value: v})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return string(rows[i].Key) < string(rows[j].Key)
	})
	return &cursor{rows: rows, pos: -1}, nil
}

// cursor walks a snapshot slice of rows taken at query time. Mirrors the teacher's IdIterator
// (mem/storage.go), which likewise snapshots matching keys up front rather than streaming from
// the live map.
type cursor struct {
	rows []derefmap.IndexEntry
	pos  int
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.pos+1 >= len(c.rows) {
		return false
	}
	c.pos++
	return true
}

func (c *cursor) Row() derefmap.IndexEntry { return c.rows[c.pos] }

func (c *cursor) Err() error { return nil }

func (c *cursor) Close() error { return nil }
