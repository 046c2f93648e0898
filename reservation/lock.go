/*
lock.go - Per-resource mutual exclusion

PURPOSE:
  The check-then-act gap between "read overlapping reservations" and
  "insert the new one" is where overbooking happens. Every mutation path
  for a resource serializes through that resource's lock, so the read,
  the capacity math and the write form one critical section.

LOCK ORDERING:
  A bundle touches several resources. Locks are always acquired in sorted
  resource-id order, so two bundles sharing resources cannot deadlock.

GRANULARITY:
  One mutex per resource id. Operations on different resources never
  block each other. Lock entries are never removed; the set of resource
  ids is small and bounded by the catalog.
*/
package reservation

import (
	"sort"
	"sync"
)

type resourceLocks struct {
	mu    sync.Mutex
	locks map[ResourceID]*sync.Mutex
}

func newResourceLocks() *resourceLocks {
	return &resourceLocks{locks: make(map[ResourceID]*sync.Mutex)}
}

func (rl *resourceLocks) get(id ResourceID) *sync.Mutex {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	m, ok := rl.locks[id]
	if !ok {
		m = &sync.Mutex{}
		rl.locks[id] = m
	}
	return m
}

// Lock acquires the locks for all given resource ids (deduplicated, in
// sorted order) and returns the function that releases them in reverse.
func (rl *resourceLocks) Lock(ids ...ResourceID) (unlock func()) {
	unique := make(map[ResourceID]bool, len(ids))
	var sorted []ResourceID
	for _, id := range ids {
		if !unique[id] {
			unique[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, id := range sorted {
		m := rl.get(id)
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
