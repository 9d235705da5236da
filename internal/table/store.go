// Package table holds the client-side reconciliation state shared between
// the session and query controllers: the per-row result store and the
// conversation log.
package table

import (
	"sync"

	"github.com/sells-group/enrichtable/internal/model"
)

// Store is the authoritative mapping from row index to enrichment outcome.
// The session controller is its only writer; readers always observe fully
// applied operations, never a half-applied replace.
type Store interface {
	// UpsertPending inserts a pending placeholder for rowIndex. It never
	// overwrites an existing entry.
	UpsertPending(rowIndex int, row model.Row)
	// SetProcessing marks an existing entry as processing, preserving any
	// previously attached fields. It is a no-op when no entry exists.
	SetProcessing(rowIndex int)
	// Replace stores res wholesale, discarding any prior entry for its
	// row index, including fields absent from the new payload.
	Replace(res model.RowResult)
	Get(rowIndex int) (model.RowResult, bool)
	// All returns entries in insertion order.
	All() []model.RowResult
	Count() int
	CountByStatus(status model.RowStatus) int
	Reset()
}

// MemStore is the in-memory Store used for live sessions.
type MemStore struct {
	mu      sync.RWMutex
	results map[int]model.RowResult
	order   []int
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{results: make(map[int]model.RowResult)}
}

func (s *MemStore) UpsertPending(rowIndex int, row model.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[rowIndex]; ok {
		return
	}
	s.results[rowIndex] = model.RowResult{
		RowIndex: rowIndex,
		Row:      row.Clone(),
		Status:   model.StatusPending,
	}
	s.order = append(s.order, rowIndex)
}

func (s *MemStore) SetProcessing(rowIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[rowIndex]
	if !ok {
		return
	}
	res.Status = model.StatusProcessing
	s.results[rowIndex] = res
}

func (s *MemStore) Replace(res model.RowResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[res.RowIndex]; !ok {
		s.order = append(s.order, res.RowIndex)
	}
	s.results[res.RowIndex] = res.Clone()
}

func (s *MemStore) Get(rowIndex int) (model.RowResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[rowIndex]
	if !ok {
		return model.RowResult{}, false
	}
	return res.Clone(), true
}

func (s *MemStore) All() []model.RowResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.RowResult, 0, len(s.order))
	for _, idx := range s.order {
		out = append(out, s.results[idx].Clone())
	}
	return out
}

func (s *MemStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

func (s *MemStore) CountByStatus(status model.RowStatus) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, res := range s.results {
		if res.Status == status {
			n++
		}
	}
	return n
}

func (s *MemStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[int]model.RowResult)
	s.order = nil
}
