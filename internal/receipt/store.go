package receipt

import (
	"slices"
	"sync"
)

// Store holds receipt records in memory for the life of the process.
// Records are returned most recent first. All methods are safe for
// concurrent use; reads work on a snapshot.
type Store struct {
	mu sync.RWMutex
	// records is kept in insertion order so inserts are amortized O(1);
	// readers walk it backwards.
	records []*Record
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{}
}

// InsertFront adds a record as the newest entry
func (s *Store) InsertFront(record *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

// List returns all records, most recent first
func (s *Store) List() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, len(s.records))
	for i, r := range s.records {
		out[len(s.records)-1-i] = r
	}
	return out
}

// Get returns the record with the given ID
func (s *Store) Get(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.records[i], true
	}
	return nil, false
}

// Delete removes the record with the given ID and returns it.
// The store is left untouched when the ID is unknown.
func (s *Store) Delete(id string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, false
	}
	record := s.records[i]
	s.records = slices.Delete(s.records, i, i+1)
	return record, true
}

// Len returns the number of records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// indexOf must be called with mu held
func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.records, func(r *Record) bool {
		return r.ID == id
	})
}
