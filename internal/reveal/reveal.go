// Package reveal derives presentation-visible state from enrichment arrivals
// and elapsed time: which cells are ready to show and which rows are
// expanded. It performs no I/O; callers drive it from a fixed-interval tick
// or on store changes.
package reveal

import (
	"sync"
	"time"

	"github.com/sells-group/enrichtable/internal/model"
)

const (
	// RowRevealWindow is the fixed window after a row's result arrives at
	// which all of its cells are marked permanently shown, independent of
	// per-field stagger math.
	RowRevealWindow = 2500 * time.Millisecond

	// staggerStepCap bounds the per-field stagger step.
	staggerStepCap = 300 * time.Millisecond

	// staggerBudget is the total reveal budget divided across fields.
	staggerBudget = 2000 * time.Millisecond

	// collapseDelay is how long after a row leaves processing it is
	// auto-collapsed, unless it became the processing row again.
	collapseDelay = 2000 * time.Millisecond
)

type cellKey struct {
	row   int
	field string
}

// Tracker owns reveal timing state: per-row arrival timestamps, per-cell
// shown flags and row expansion. It is reset only by session reset.
type Tracker struct {
	fields []model.Field

	mu            sync.Mutex
	arrivals      map[int]time.Time
	shown         map[cellKey]bool
	expanded      map[int]bool
	processingRow int
	leftAt        map[int]time.Time
}

// NewTracker creates a Tracker for the session's requested fields.
func NewTracker(fields []model.Field) *Tracker {
	return &Tracker{
		fields:        append([]model.Field(nil), fields...),
		arrivals:      make(map[int]time.Time),
		shown:         make(map[cellKey]bool),
		expanded:      make(map[int]bool),
		processingRow: -1,
		leftAt:        make(map[int]time.Time),
	}
}

// staggerStep returns min(staggerStepCap, staggerBudget/fieldCount).
func staggerStep(fieldCount int) time.Duration {
	if fieldCount <= 0 {
		return staggerStepCap
	}
	step := staggerBudget / time.Duration(fieldCount)
	if step > staggerStepCap {
		step = staggerStepCap
	}
	return step
}

// RecordArrival notes that a result for rowIndex was stored at now. If the
// row was the processing row it leaves that state and becomes eligible for
// auto-collapse.
func (t *Tracker) RecordArrival(rowIndex int, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.arrivals[rowIndex] = now
	if t.processingRow == rowIndex {
		t.processingRow = -1
		t.leftAt[rowIndex] = now
	}
}

// SetProcessingRow marks rowIndex as the currently active row; it is
// force-expanded until it leaves processing.
func (t *Tracker) SetProcessingRow(rowIndex int, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev := t.processingRow; prev >= 0 && prev != rowIndex {
		t.leftAt[prev] = now
	}
	t.processingRow = rowIndex
	t.expanded[rowIndex] = true
	delete(t.leftAt, rowIndex)
}

// ProcessingRow returns the currently active row, or -1.
func (t *Tracker) ProcessingRow() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processingRow
}

// SetExpanded records a manual expand/collapse toggle.
func (t *Tracker) SetExpanded(rowIndex int, expanded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expanded[rowIndex] = expanded
}

// RowExpanded reports whether a row is expanded. The processing row is
// always expanded.
func (t *Tracker) RowExpanded(rowIndex int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return rowIndex == t.processingRow || t.expanded[rowIndex]
}

// CellVisible reports whether the cell for (rowIndex, fieldName) may be
// shown at now. A cell with no recorded arrival is visible immediately;
// otherwise it appears once its stagger delay has elapsed, and is marked
// permanently shown once the full reveal window has passed.
func (t *Tracker) CellVisible(rowIndex int, fieldName string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := cellKey{rowIndex, fieldName}
	if t.shown[key] {
		return true
	}
	arrived, ok := t.arrivals[rowIndex]
	if !ok {
		return true
	}
	elapsed := now.Sub(arrived)
	if elapsed >= RowRevealWindow {
		t.shown[key] = true
		return true
	}

	pos := t.fieldPosition(fieldName)
	if pos < 0 {
		return true
	}
	return elapsed >= time.Duration(pos)*staggerStep(len(t.fields))
}

func (t *Tracker) fieldPosition(fieldName string) int {
	for i, f := range t.fields {
		if f.Name == fieldName {
			return i
		}
	}
	return -1
}

// Reconcile is the periodic pass: rows whose reveal window has elapsed get
// all cells marked permanently shown, and rows that left processing long
// enough ago are auto-collapsed.
func (t *Tracker) Reconcile(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for rowIndex, arrived := range t.arrivals {
		if now.Sub(arrived) < RowRevealWindow {
			continue
		}
		for _, f := range t.fields {
			t.shown[cellKey{rowIndex, f.Name}] = true
		}
	}

	for rowIndex, left := range t.leftAt {
		if rowIndex == t.processingRow {
			delete(t.leftAt, rowIndex)
			continue
		}
		if now.Sub(left) >= collapseDelay {
			t.expanded[rowIndex] = false
			delete(t.leftAt, rowIndex)
		}
	}
}

// Reset clears all reveal state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.arrivals = make(map[int]time.Time)
	t.shown = make(map[cellKey]bool)
	t.expanded = make(map[int]bool)
	t.processingRow = -1
	t.leftAt = make(map[int]time.Time)
}
