package catalog

import (
	"errors"
	"sync/atomic"
)

// ErrNotLoaded is returned by Store.Current before any load succeeded.
var ErrNotLoaded = errors.New("task catalog not loaded")

// Store holds the current Snapshot for a catalog file. Readers never block;
// Reload swaps the snapshot atomically and keeps the previous one on failure.
type Store struct {
	path string
	cur  atomic.Pointer[Snapshot]
	load func(string) (*Snapshot, error)
}

// NewStore returns a Store for path without reading it. Call Reload to load.
func NewStore(path string) *Store {
	return &Store{path: path, load: Load}
}

// NewStaticStore returns a Store that always serves snap. Reload is a no-op.
func NewStaticStore(snap *Snapshot) *Store {
	s := &Store{load: func(string) (*Snapshot, error) { return snap, nil }}
	s.cur.Store(snap)
	return s
}

// Path returns the catalog file path.
func (s *Store) Path() string { return s.path }

// Current returns the active snapshot or ErrNotLoaded.
func (s *Store) Current() (*Snapshot, error) {
	if snap := s.cur.Load(); snap != nil {
		return snap, nil
	}
	return nil, ErrNotLoaded
}

// Reload re-reads the catalog file. On error the previous snapshot stays active.
func (s *Store) Reload() (*Snapshot, error) {
	snap, err := s.load(s.path)
	if err != nil {
		return nil, err
	}
	s.cur.Store(snap)
	return snap, nil
}
