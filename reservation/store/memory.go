// Package store provides in-memory implementations of the reservation
// storage interfaces, used by tests and demos.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/atelier/reservation-engine/reservation"
)

// =============================================================================
// MEMORY STORE - In-memory LedgerStore + ResourceStore
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	resources    map[reservation.ResourceID]reservation.Resource
	reservations map[reservation.ReservationID]reservation.Reservation
	byResource   map[reservation.ResourceID][]reservation.ReservationID
}

func NewMemory() *Memory {
	return &Memory{
		resources:    make(map[reservation.ResourceID]reservation.Resource),
		reservations: make(map[reservation.ReservationID]reservation.Reservation),
		byResource:   make(map[reservation.ResourceID][]reservation.ReservationID),
	}
}

// -----------------------------------------------------------------------------
// ResourceStore
// -----------------------------------------------------------------------------

func (m *Memory) GetResource(_ context.Context, id reservation.ResourceID) (*reservation.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res, ok := m.resources[id]
	if !ok {
		return nil, nil
	}
	cp := res
	return &cp, nil
}

func (m *Memory) SaveResource(_ context.Context, r reservation.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resources[r.ID] = r
	return nil
}

func (m *Memory) ListResources(_ context.Context) ([]reservation.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]reservation.Resource, 0, len(m.resources))
	for _, r := range m.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// -----------------------------------------------------------------------------
// LedgerStore
// -----------------------------------------------------------------------------

func (m *Memory) Insert(_ context.Context, r reservation.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(r)
}

func (m *Memory) InsertBatch(_ context.Context, rs []reservation.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range rs {
		if err := m.insertLocked(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) insertLocked(r reservation.Reservation) error {
	m.reservations[r.ID] = r
	m.byResource[r.ResourceID] = append(m.byResource[r.ResourceID], r.ID)
	return nil
}

func (m *Memory) Get(_ context.Context, id reservation.ReservationID) (*reservation.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reservations[id]
	if !ok {
		return nil, &reservation.NotFoundError{Kind: "reservation", ID: string(id)}
	}
	cp := r
	return &cp, nil
}

func (m *Memory) UpdateStatus(_ context.Context, r reservation.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.reservations[r.ID]
	if !ok {
		return &reservation.NotFoundError{Kind: "reservation", ID: string(r.ID)}
	}
	existing.Status = r.Status
	existing.DecidedBy = r.DecidedBy
	existing.DecidedAt = r.DecidedAt
	existing.UpdatedAt = r.UpdatedAt
	m.reservations[r.ID] = existing
	return nil
}

func (m *Memory) Overlapping(_ context.Context, resourceID reservation.ResourceID, w reservation.Window, statuses []reservation.Status) ([]reservation.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[reservation.Status]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	var out []reservation.Reservation
	for _, id := range m.byResource[resourceID] {
		r := m.reservations[id]
		if wanted[r.Status] && r.Window.Overlaps(w) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) ListByRequester(_ context.Context, requesterID string) ([]reservation.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []reservation.Reservation
	for _, r := range m.reservations {
		if r.RequesterID == requesterID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListByStatus(_ context.Context, status reservation.Status) ([]reservation.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []reservation.Reservation
	for _, r := range m.reservations {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// -----------------------------------------------------------------------------
// TxLedgerStore
// -----------------------------------------------------------------------------

// WithTx simulates a transaction with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(reservation.LedgerStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	view := &txView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	reservations map[reservation.ReservationID]reservation.Reservation
	byResource   map[reservation.ResourceID][]reservation.ReservationID
}

func (m *Memory) snapshot() memorySnapshot {
	rs := make(map[reservation.ReservationID]reservation.Reservation, len(m.reservations))
	for k, v := range m.reservations {
		rs[k] = v
	}
	br := make(map[reservation.ResourceID][]reservation.ReservationID, len(m.byResource))
	for k, v := range m.byResource {
		br[k] = append([]reservation.ReservationID{}, v...)
	}
	return memorySnapshot{reservations: rs, byResource: br}
}

func (m *Memory) restore(s memorySnapshot) {
	m.reservations = s.reservations
	m.byResource = s.byResource
}

// txView operates on the parent's maps directly; the parent's lock is
// already held for the duration of WithTx.
type txView struct {
	parent *Memory
}

func (tv *txView) Insert(_ context.Context, r reservation.Reservation) error {
	return tv.parent.insertLocked(r)
}

func (tv *txView) InsertBatch(_ context.Context, rs []reservation.Reservation) error {
	for _, r := range rs {
		if err := tv.parent.insertLocked(r); err != nil {
			return err
		}
	}
	return nil
}

func (tv *txView) Get(_ context.Context, id reservation.ReservationID) (*reservation.Reservation, error) {
	r, ok := tv.parent.reservations[id]
	if !ok {
		return nil, &reservation.NotFoundError{Kind: "reservation", ID: string(id)}
	}
	cp := r
	return &cp, nil
}

func (tv *txView) UpdateStatus(_ context.Context, r reservation.Reservation) error {
	existing, ok := tv.parent.reservations[r.ID]
	if !ok {
		return &reservation.NotFoundError{Kind: "reservation", ID: string(r.ID)}
	}
	existing.Status = r.Status
	existing.DecidedBy = r.DecidedBy
	existing.DecidedAt = r.DecidedAt
	existing.UpdatedAt = r.UpdatedAt
	tv.parent.reservations[r.ID] = existing
	return nil
}

func (tv *txView) Overlapping(_ context.Context, resourceID reservation.ResourceID, w reservation.Window, statuses []reservation.Status) ([]reservation.Reservation, error) {
	wanted := make(map[reservation.Status]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	var out []reservation.Reservation
	for _, id := range tv.parent.byResource[resourceID] {
		r := tv.parent.reservations[id]
		if wanted[r.Status] && r.Window.Overlaps(w) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (tv *txView) ListByRequester(ctx context.Context, requesterID string) ([]reservation.Reservation, error) {
	var out []reservation.Reservation
	for _, r := range tv.parent.reservations {
		if r.RequesterID == requesterID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (tv *txView) ListByStatus(ctx context.Context, status reservation.Status) ([]reservation.Reservation, error) {
	var out []reservation.Reservation
	for _, r := range tv.parent.reservations {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}
