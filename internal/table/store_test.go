package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrichtable/internal/model"
)

func testRow(email string) model.Row {
	return model.NewRow([]string{"email"}, map[string]string{"email": email})
}

func TestUpsertPendingOnlyFirstCreates(t *testing.T) {
	s := NewMemStore()

	s.UpsertPending(0, testRow("a@acme.com"))
	require.Equal(t, 1, s.Count())

	// Move the entry forward, then re-upsert pending: must be a no-op.
	s.SetProcessing(0)
	s.UpsertPending(0, testRow("other@acme.com"))

	res, ok := s.Get(0)
	require.True(t, ok)
	assert.Equal(t, model.StatusProcessing, res.Status)
	assert.Equal(t, "a@acme.com", res.Row.Values["email"])
	assert.Equal(t, 1, s.Count())
}

func TestSetProcessingWithoutEntryIsNoop(t *testing.T) {
	s := NewMemStore()
	s.SetProcessing(3)
	assert.Equal(t, 0, s.Count())
	_, ok := s.Get(3)
	assert.False(t, ok)
}

func TestSetProcessingPreservesFields(t *testing.T) {
	s := NewMemStore()
	s.Replace(model.RowResult{
		RowIndex: 0,
		Row:      testRow("a@acme.com"),
		Fields:   map[string]model.FieldEnrichment{"size": {Value: "10-50"}},
		Status:   model.StatusCompleted,
	})

	s.SetProcessing(0)

	res, ok := s.Get(0)
	require.True(t, ok)
	assert.Equal(t, model.StatusProcessing, res.Status)
	assert.Equal(t, "10-50", res.Fields["size"].Value)
}

func TestReplaceDiscardsPriorFields(t *testing.T) {
	s := NewMemStore()
	s.Replace(model.RowResult{
		RowIndex: 0,
		Fields: map[string]model.FieldEnrichment{
			"size":     {Value: "10-50"},
			"industry": {Value: "widgets"},
		},
		Status: model.StatusCompleted,
	})

	s.Replace(model.RowResult{
		RowIndex: 0,
		Fields:   map[string]model.FieldEnrichment{"size": {Value: "50-100"}},
		Status:   model.StatusCompleted,
	})

	res, ok := s.Get(0)
	require.True(t, ok)
	assert.Equal(t, "50-100", res.Fields["size"].Value)
	// Fields absent from the new payload are cleared, not merged.
	_, present := res.Fields["industry"]
	assert.False(t, present)
}

func TestAllInsertionOrder(t *testing.T) {
	s := NewMemStore()
	s.UpsertPending(2, testRow("c@acme.com"))
	s.UpsertPending(0, testRow("a@acme.com"))
	s.Replace(model.RowResult{RowIndex: 5, Status: model.StatusCompleted})

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, []int{all[0].RowIndex, all[1].RowIndex, all[2].RowIndex}, []int{2, 0, 5})
}

func TestCountByStatus(t *testing.T) {
	s := NewMemStore()
	s.UpsertPending(0, testRow("a@acme.com"))
	s.UpsertPending(1, testRow("b@acme.com"))
	s.Replace(model.RowResult{RowIndex: 2, Status: model.StatusCompleted})

	assert.Equal(t, 2, s.CountByStatus(model.StatusPending))
	assert.Equal(t, 1, s.CountByStatus(model.StatusCompleted))
	assert.Equal(t, 0, s.CountByStatus(model.StatusError))
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewMemStore()
	s.Replace(model.RowResult{
		RowIndex: 0,
		Fields:   map[string]model.FieldEnrichment{"size": {Value: "10-50"}},
		Status:   model.StatusCompleted,
	})

	res, ok := s.Get(0)
	require.True(t, ok)
	res.Fields["size"] = model.FieldEnrichment{Value: "mutated"}

	again, _ := s.Get(0)
	assert.Equal(t, "10-50", again.Fields["size"].Value)
}

func TestReset(t *testing.T) {
	s := NewMemStore()
	s.UpsertPending(0, testRow("a@acme.com"))
	s.Reset()
	assert.Equal(t, 0, s.Count())
	assert.Empty(t, s.All())
}
