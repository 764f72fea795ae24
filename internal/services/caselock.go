package services

import (
	"sync"

	"github.com/google/uuid"
)

// caseLocker serializes segmentation per case id so at most one engine call
// is outstanding per case. Entries are reference-counted and dropped once
// the last holder releases, so the map never grows with dead cases.
type caseLocker struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newCaseLocker() *caseLocker {
	return &caseLocker{entries: make(map[uuid.UUID]*lockEntry)}
}

// Lock blocks until the per-case lock is held and returns the release func.
func (cl *caseLocker) Lock(caseID uuid.UUID) func() {
	cl.mu.Lock()
	entry, ok := cl.entries[caseID]
	if !ok {
		entry = &lockEntry{}
		cl.entries[caseID] = entry
	}
	entry.refs++
	cl.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		cl.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(cl.entries, caseID)
		}
		cl.mu.Unlock()
	}
}
