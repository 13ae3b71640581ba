package state

import (
	"sync"
	"time"

	"github.com/five82/beoplay/internal/notify"
)

// Store owns the device snapshot and serializes every change to it.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	now      func() time.Time
}

// Merge applies a notification. The version advances only when a known kind
// merged cleanly. The returned snapshot is a copy of the stored state after
// the call, whether or not the merge succeeded.
func (s *Store) Merge(n notify.Notification) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Merge(s.snapshot, n)
	if err != nil {
		return s.snapshot.Clone(), err
	}
	if n.Kind.Known() {
		s.commit(next)
	}
	return s.snapshot.Clone(), nil
}

// Update applies fn to a copy of the snapshot and stores the result. Identity
// cannot be changed through Update; use SetIdentity.
func (s *Store) Update(fn func(*Snapshot)) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snapshot.Clone()
	fn(&next)
	next.Identity = s.snapshot.Identity
	s.commit(next)
	return s.snapshot.Clone()
}

// SetIdentity records the device identity the first time it is called and
// reports whether it did. Later calls leave the stored identity alone.
func (s *Store) SetIdentity(id Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot.Identity.Known() || !id.Known() {
		return false
	}
	next := s.snapshot.Clone()
	next.Identity = id
	s.commit(next)
	return true
}

// ReplaceSources swaps the source catalogue wholesale.
func (s *Store) ReplaceSources(sources []Source) Snapshot {
	return s.Update(func(snap *Snapshot) {
		snap.Catalogue.Sources = cloneSlice(sources)
	})
}

// ReplaceStandPositions swaps the stand position catalogue wholesale.
func (s *Store) ReplaceStandPositions(positions []Position) Snapshot {
	return s.Update(func(snap *Snapshot) {
		snap.Catalogue.StandPositions = cloneSlice(positions)
	})
}

// ReplaceSoundModes swaps the sound mode catalogue wholesale.
func (s *Store) ReplaceSoundModes(modes []SoundMode) Snapshot {
	return s.Update(func(snap *Snapshot) {
		snap.Catalogue.SoundModes = cloneSlice(modes)
	})
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// commit must be called with mu held.
func (s *Store) commit(next Snapshot) {
	next.Version = s.snapshot.Version + 1
	if s.now != nil {
		next.LastUpdated = s.now()
	} else {
		next.LastUpdated = time.Now()
	}
	s.snapshot = next
}
