package fakestore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rsms/go-json"
)

// Store is a tiny in-memory content store keyed by RecordId byte form, holding just enough of a
// record's content (a set of named numeric fields) for a demo indexer to compute which SchemaId
// fields it read. It is not a record store implementation — DerefMap never touches it, it only
// exists so a caller has something to dereference.
//
// Record content is persisted as JSON via go-json, the same Builder/Reader pair the teacher's
// JsonEncoder/JsonDecoder (json.go) wrap for ent field encoding.
type Store struct {
	mu   sync.RWMutex
	rows map[string][]byte
}

// NewStore returns an empty content store.
func NewStore() *Store {
	return &Store{rows: make(map[string][]byte)}
}

// Put stores fields (name -> numeric value) against id's byte form.
func (s *Store) Put(id RecordId, fields map[string]uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[string(id.ToBytes())] = encodeFields(fields)
}

// Get retrieves the fields most recently Put for id.
func (s *Store) Get(id RecordId) (map[string]uint64, bool) {
	s.mu.RLock()
	data, ok := s.rows[string(id.ToBytes())]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	fields, err := decodeFields(data)
	if err != nil {
		return nil, false
	}
	return fields, true
}

func encodeFields(fields map[string]uint64) []byte {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b json.Builder
	b.StartObject()
	for _, name := range names {
		b.Key(name)
		b.Uint(fields[name], 64)
	}
	b.EndObject()
	return b.Bytes()
}

func decodeFields(data []byte) (map[string]uint64, error) {
	var r json.Reader
	r.ResetBytes(data)
	if !r.ObjectStart() {
		return nil, fmt.Errorf("fakestore: content is not a JSON object")
	}
	fields := make(map[string]uint64)
	for {
		key := string(r.Key())
		if key == "" {
			break
		}
		fields[key] = r.Uint(64)
	}
	if err := r.Err; err != nil {
		return nil, err
	}
	return fields, nil
}
