/*
interval.go - Half-open time windows

PURPOSE:
  The whole engine reasons about time as half-open windows [Start, End).
  Two windows overlap iff each starts before the other ends. Touching
  windows (one ends exactly where the other starts) do NOT overlap, which
  is what lets a rental returned on the 15th be re-rented from the 15th.

HALF-OPEN SEMANTICS:
  [Jan 10, Jan 15) vs [Jan 14, Jan 20)  -> overlap (Jan 14)
  [Jan 10, Jan 15) vs [Jan 15, Jan 20)  -> no overlap (touching)

  Degenerate windows (Start == End) cover no instant and are rejected by
  Validate before they reach the overlap predicate.

CLOCK:
  "Is this window in the past?" depends on wall-clock time, which is
  global mutable state. All components take a Clock so tests can pin
  "now" to an arbitrary instant.

SEE ALSO:
  - ledger.go: Overlapping query and availability math built on Overlaps
  - admission.go: Window validation at admission time
*/
package reservation

import (
	"math"
	"time"
)

// =============================================================================
// WINDOW - Half-open interval [Start, End)
// =============================================================================

type Window struct {
	Start time.Time
	End   time.Time
}

func NewWindow(start, end time.Time) Window {
	return Window{Start: start, End: end}
}

// Overlaps reports whether two half-open windows share at least one instant.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Contains reports whether the instant t falls inside [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Validate rejects inverted and degenerate windows.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return &ValidationError{Field: "window", Message: "start and end are required"}
	}
	if !w.Start.Before(w.End) {
		return &ValidationError{Field: "window", Message: "end must be after start"}
	}
	return nil
}

// Days returns the number of chargeable days covered by the window,
// rounded up. A window shorter than a day still charges one day.
func (w Window) Days() int {
	hours := w.End.Sub(w.Start).Hours()
	days := int(math.Ceil(hours / 24))
	if days < 1 {
		days = 1
	}
	return days
}

func (w Window) String() string {
	return "[" + w.Start.Format(time.RFC3339) + ", " + w.End.Format(time.RFC3339) + ")"
}

// =============================================================================
// CLOCK - Injected "now" for deterministic validation
// =============================================================================

type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. For tests.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
