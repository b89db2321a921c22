package pfrp

import (
	"sync"
)

// Shared holds the one routing table of a run.  The composition root owns
// a Shared and hands it to every node; the first Init builds the table and
// later calls return the same one.
type Shared struct {
	mu    sync.Mutex
	table *Table
}

// Init builds the table on first call.  A failed build leaves the Shared
// uninitialized.
func (s *Shared) Init(cfg *Config, opts ...Option) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table != nil {
		return s.table, nil
	}
	t, err := NewTable(cfg, opts...)
	if err != nil {
		return nil, err
	}
	s.table = t
	return t, nil
}

// Get returns the table, or ErrNotInitialized before a successful Init
func (s *Shared) Get() (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table == nil {
		return nil, ErrNotInitialized
	}
	return s.table, nil
}
