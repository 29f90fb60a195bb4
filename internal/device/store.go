package device

import (
	"sort"
	"strings"
	"sync"
)

// Store is the in-memory device state store.
//
// All runtime state lives here; only pairing credentials are persisted
// (see CredentialsRepository). Every read returns a copy, so callers can
// never mutate shared state without going through Put or Update.
type Store struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

// NewStore creates an empty device store.
func NewStore() *Store {
	return &Store{
		devices: make(map[string]*Device),
	}
}

// Get returns a copy of the device record, or ErrNotFound.
func (s *Store) Get(id string) (*Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.DeepCopy(), nil
}

// Put inserts or replaces a device record.
func (s *Store) Put(d *Device) error {
	if d == nil || strings.TrimSpace(d.ID) == "" {
		return ErrInvalidDevice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.devices[d.ID] = d.DeepCopy()
	return nil
}

// Update applies fn to the stored record under the write lock, so
// read-modify-write sequences from concurrent device tasks stay atomic.
// fn receives the live record and may mutate it in place.
func (s *Store) Update(id string, fn func(*Device)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok {
		return ErrNotFound
	}
	fn(d)
	return nil
}

// Delete removes a device record. Deleting an unknown ID is ErrNotFound.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[id]; !ok {
		return ErrNotFound
	}
	delete(s.devices, id)
	return nil
}

// List returns copies of all device records, sorted by ID.
func (s *Store) List() []*Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d.DeepCopy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of known devices.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}
