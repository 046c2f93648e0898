/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements reservation.TxLedgerStore and reservation.ResourceStore using
  SQLite. The same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  resources:    The rentable catalog (capacity, day rate, active flag)
  reservations: Every reservation ever admitted; terminal rows are kept
                for audit, so there is no DELETE on this table

INDEXES:
  idx_reservations_resource_status: Narrows the overlap query (hot path).
  The index is a candidate filter only; the exact half-open overlap
  predicate is re-applied in Go on the scanned rows.

CONCURRENCY:
  Uses sync.RWMutex for in-process thread-safety and WAL mode for better
  reader/writer concurrency. SQLITE_BUSY style failures are mapped to
  reservation.ErrStoreConflict so the admission controller's retry policy
  can tell conflicts apart from real errors.

WAL MODE:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/reservations.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  controller := reservation.NewController(store, store, reservation.SystemClock{})

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - reservation/ledger.go: Interface definitions and exactness contract
  - reservation/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/atelier/reservation-engine/reservation"
)

// Store implements the reservation storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Rentable catalog
	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		capacity INTEGER NOT NULL CHECK (capacity > 0),
		price_per_day TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Reservation ledger. Rows are never deleted; terminal statuses are
	-- retained for audit. Status is the only part that ever changes.
	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		bundle_id TEXT NOT NULL,
		resource_id TEXT NOT NULL REFERENCES resources(id),
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		status TEXT NOT NULL,
		requester_id TEXT,
		walk_in_name TEXT,
		phone_number TEXT,
		total_price TEXT NOT NULL,
		decided_by TEXT,
		decided_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Candidate narrowing for the overlap query (hot path). The exact
	-- overlap decision is made in Go, not by this index.
	CREATE INDEX IF NOT EXISTS idx_reservations_resource_status
		ON reservations(resource_id, status, start_at);

	CREATE INDEX IF NOT EXISTS idx_reservations_bundle
		ON reservations(bundle_id);
	CREATE INDEX IF NOT EXISTS idx_reservations_requester
		ON reservations(requester_id) WHERE requester_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_reservations_status
		ON reservations(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RESOURCE STORE (reservation.ResourceStore interface)
// =============================================================================

// SaveResource inserts or updates a resource.
func (s *Store) SaveResource(ctx context.Context, r reservation.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO resources (id, name, kind, capacity, price_per_day, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			capacity = excluded.capacity,
			price_per_day = excluded.price_per_day,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	createdAt := now
	if !r.CreatedAt.IsZero() {
		createdAt = r.CreatedAt.UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Name, r.Kind, r.Capacity,
		r.PricePerDay.String(), r.Active,
		createdAt, now,
	)
	return classifyErr(err)
}

// GetResource retrieves a resource by id. Returns (nil, nil) if missing.
func (s *Store) GetResource(ctx context.Context, id reservation.ResourceID) (*reservation.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		r                    reservation.Resource
		price                string
		createdAt, updatedAt string
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, kind, capacity, price_per_day, active, created_at, updated_at FROM resources WHERE id = ?",
		id,
	).Scan(&r.ID, &r.Name, &r.Kind, &r.Capacity, &price, &r.Active, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyErr(err)
	}

	r.PricePerDay = mustDecimal(price)
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}

// ListResources returns all resources ordered by name.
func (s *Store) ListResources(ctx context.Context) ([]reservation.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, kind, capacity, price_per_day, active, created_at, updated_at FROM resources ORDER BY name",
	)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var resources []reservation.Resource
	for rows.Next() {
		var (
			r                    reservation.Resource
			price                string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Kind, &r.Capacity, &price, &r.Active, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		r.PricePerDay = mustDecimal(price)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		resources = append(resources, r)
	}
	return resources, rows.Err()
}

// =============================================================================
// LEDGER STORE (reservation.LedgerStore interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const reservationColumns = `id, bundle_id, resource_id, start_at, end_at, quantity, status,
	requester_id, walk_in_name, phone_number, total_price, decided_by, decided_at, created_at, updated_at`

// Insert persists a new reservation.
func (s *Store) Insert(ctx context.Context, r reservation.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertTx(ctx, s.db, r)
}

func (s *Store) insertTx(ctx context.Context, db execer, r reservation.Reservation) error {
	query := `
		INSERT INTO reservations (` + reservationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var decidedAt *string
	if r.DecidedAt != nil {
		t := r.DecidedAt.UTC().Format(time.RFC3339)
		decidedAt = &t
	}

	_, err := db.ExecContext(ctx, query,
		r.ID, r.BundleID, r.ResourceID,
		r.Window.Start.UTC().Format(time.RFC3339),
		r.Window.End.UTC().Format(time.RFC3339),
		r.Quantity, r.Status,
		nullString(r.RequesterID),
		nullString(r.WalkInName),
		nullString(r.PhoneNumber),
		r.TotalPrice.String(),
		nullString(r.DecidedBy),
		decidedAt,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return classifyErr(err)
}

// InsertBatch persists several reservations atomically.
func (s *Store) InsertBatch(ctx context.Context, rs []reservation.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyErr(err)
	}
	defer sqlTx.Rollback()

	for _, r := range rs {
		if err := s.insertTx(ctx, sqlTx, r); err != nil {
			return err
		}
	}
	return classifyErr(sqlTx.Commit())
}

// Get returns a reservation by id.
func (s *Store) Get(ctx context.Context, id reservation.ReservationID) (*reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, err := s.queryReservations(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 {
		return nil, &reservation.NotFoundError{Kind: "reservation", ID: string(id)}
	}
	return &rs[0], nil
}

// UpdateStatus persists the status and decision fields of r.
func (s *Store) UpdateStatus(ctx context.Context, r reservation.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateStatusTx(ctx, s.db, r)
}

func (s *Store) updateStatusTx(ctx context.Context, db execer, r reservation.Reservation) error {
	var decidedAt *string
	if r.DecidedAt != nil {
		t := r.DecidedAt.UTC().Format(time.RFC3339)
		decidedAt = &t
	}

	res, err := db.ExecContext(ctx, `
		UPDATE reservations
		SET status = ?, decided_by = ?, decided_at = ?, updated_at = ?
		WHERE id = ?`,
		r.Status, nullString(r.DecidedBy), decidedAt,
		r.UpdatedAt.UTC().Format(time.RFC3339), r.ID,
	)
	if err != nil {
		return classifyErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &reservation.NotFoundError{Kind: "reservation", ID: string(r.ID)}
	}
	return nil
}

// Overlapping returns reservations for resourceID in the given statuses
// whose windows overlap w. The SQL narrows candidates; the exact half-open
// predicate is re-applied on the scanned rows.
func (s *Store) Overlapping(ctx context.Context, resourceID reservation.ResourceID, w reservation.Window, statuses []reservation.Status) ([]reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")

	query := "SELECT " + reservationColumns + ` FROM reservations
		WHERE resource_id = ?
		  AND status IN (` + placeholders + `)
		  AND start_at < ? AND end_at > ?
		ORDER BY start_at ASC`

	args := []any{resourceID}
	for _, st := range statuses {
		args = append(args, st)
	}
	args = append(args,
		w.End.UTC().Format(time.RFC3339),
		w.Start.UTC().Format(time.RFC3339),
	)

	candidates, err := s.queryReservations(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var out []reservation.Reservation
	for _, r := range candidates {
		if r.Window.Overlaps(w) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListByRequester returns reservations owned by requesterID, newest first.
func (s *Store) ListByRequester(ctx context.Context, requesterID string) ([]reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryReservations(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE requester_id = ? ORDER BY created_at DESC",
		requesterID)
}

// ListByStatus returns reservations in the given status, oldest first.
// An empty status returns everything.
func (s *Store) ListByStatus(ctx context.Context, status reservation.Status) ([]reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if status == "" {
		return s.queryReservations(ctx,
			"SELECT "+reservationColumns+" FROM reservations ORDER BY created_at ASC")
	}
	return s.queryReservations(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE status = ? ORDER BY created_at ASC",
		status)
}

func (s *Store) queryReservations(ctx context.Context, query string, args ...any) ([]reservation.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var reservations []reservation.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

func scanReservation(rows *sql.Rows) (reservation.Reservation, error) {
	var (
		r                                    reservation.Reservation
		startAt, endAt                       string
		requesterID, walkInName, phoneNumber sql.NullString
		totalPrice                           string
		decidedBy, decidedAt                 sql.NullString
		createdAt, updatedAt                 string
	)

	err := rows.Scan(
		&r.ID, &r.BundleID, &r.ResourceID, &startAt, &endAt, &r.Quantity, &r.Status,
		&requesterID, &walkInName, &phoneNumber, &totalPrice, &decidedBy, &decidedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan reservation: %w", err)
	}

	start, _ := time.Parse(time.RFC3339, startAt)
	end, _ := time.Parse(time.RFC3339, endAt)
	r.Window = reservation.Window{Start: start, End: end}
	r.RequesterID = requesterID.String
	r.WalkInName = walkInName.String
	r.PhoneNumber = phoneNumber.String
	r.TotalPrice = mustDecimal(totalPrice)
	r.DecidedBy = decidedBy.String
	if decidedAt.Valid {
		t, _ := time.Parse(time.RFC3339, decidedAt.String)
		r.DecidedAt = &t
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return r, nil
}

// =============================================================================
// TRANSACTIONAL STORE (reservation.TxLedgerStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(reservation.LedgerStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyErr(err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	return classifyErr(sqlTx.Commit())
}

// txStore routes writes through the open transaction. Reads go through
// the transaction as well so the view includes the writes made so far.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) Insert(ctx context.Context, r reservation.Reservation) error {
	return ts.parent.insertTx(ctx, ts.tx, r)
}

func (ts *txStore) InsertBatch(ctx context.Context, rs []reservation.Reservation) error {
	for _, r := range rs {
		if err := ts.parent.insertTx(ctx, ts.tx, r); err != nil {
			return err
		}
	}
	return nil
}

func (ts *txStore) UpdateStatus(ctx context.Context, r reservation.Reservation) error {
	return ts.parent.updateStatusTx(ctx, ts.tx, r)
}

func (ts *txStore) Get(ctx context.Context, id reservation.ReservationID) (*reservation.Reservation, error) {
	rs, err := ts.queryTx(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 {
		return nil, &reservation.NotFoundError{Kind: "reservation", ID: string(id)}
	}
	return &rs[0], nil
}

func (ts *txStore) Overlapping(ctx context.Context, resourceID reservation.ResourceID, w reservation.Window, statuses []reservation.Status) ([]reservation.Reservation, error) {
	rows, err := ts.queryTx(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE resource_id = ?", resourceID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[reservation.Status]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}
	var out []reservation.Reservation
	for _, r := range rows {
		if wanted[r.Status] && r.Window.Overlaps(w) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (ts *txStore) ListByRequester(ctx context.Context, requesterID string) ([]reservation.Reservation, error) {
	return ts.queryTx(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE requester_id = ? ORDER BY created_at DESC",
		requesterID)
}

func (ts *txStore) ListByStatus(ctx context.Context, status reservation.Status) ([]reservation.Reservation, error) {
	if status == "" {
		return ts.queryTx(ctx,
			"SELECT "+reservationColumns+" FROM reservations ORDER BY created_at ASC")
	}
	return ts.queryTx(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE status = ? ORDER BY created_at ASC",
		status)
}

func (ts *txStore) queryTx(ctx context.Context, query string, args ...any) ([]reservation.Reservation, error) {
	rows, err := ts.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var reservations []reservation.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// classifyErr maps busy/locked failures to the engine's conflict sentinel
// so the admission controller can retry them.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return fmt.Errorf("%w: %v", reservation.ErrStoreConflict, err)
	}
	return err
}
