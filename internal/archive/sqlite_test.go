package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrichtable/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testSession(id string, completedAt time.Time) Session {
	return Session{
		ID:          id,
		EmailColumn: "email",
		Columns:     []string{"email", "name"},
		Fields: []model.Field{
			{Name: "size", DisplayName: "Company Size", Type: model.FieldTypeString},
		},
		Status:   "completed",
		RowCount: 2,
		Results: []model.RowResult{
			{
				RowIndex: 0,
				Row:      model.NewRow([]string{"email", "name"}, map[string]string{"email": "a@acme.com", "name": "Ann"}),
				Fields:   map[string]model.FieldEnrichment{"size": {Value: "10-50"}},
				Status:   model.StatusCompleted,
			},
			{
				RowIndex: 1,
				Status:   model.StatusSkipped,
				Error:    "Personal email provider",
			},
		},
		StartedAt:   completedAt.Add(-time.Minute),
		CompletedAt: completedAt,
	}
}

func TestSQLiteSaveAndGet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sess := testSession("sess-1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, st.SaveSession(ctx, sess))

	got, err := st.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, sess.EmailColumn, got.EmailColumn)
	assert.Equal(t, sess.Columns, got.Columns)
	assert.Equal(t, sess.Fields, got.Fields)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "10-50", got.Results[0].Fields["size"].Value)
	assert.Equal(t, model.StatusSkipped, got.Results[1].Status)
	assert.Equal(t, "a@acme.com", got.Results[0].Row.Values["email"])
}

func TestSQLiteGetMissing(t *testing.T) {
	st := newTestStore(t)

	got, err := st.GetSession(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteSaveReplacesExisting(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sess := testSession("sess-1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, st.SaveSession(ctx, sess))

	sess.Status = "cancelled"
	sess.Results = sess.Results[:1]
	require.NoError(t, st.SaveSession(ctx, sess))

	got, err := st.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "cancelled", got.Status)
	assert.Len(t, got.Results, 1)
}

func TestSQLiteListSessions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.SaveSession(ctx, testSession("old", base.Add(-time.Hour))))
	require.NoError(t, st.SaveSession(ctx, testSession("new", base)))

	sums, err := st.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	// Most recently completed first.
	assert.Equal(t, "new", sums[0].ID)
	assert.Equal(t, "old", sums[1].ID)
	assert.Equal(t, 2, sums[0].RowCount)
	assert.Equal(t, 2, sums[0].CompletedRows)

	limited, err := st.ListSessions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(context.Background(), Config{Path: filepath.Join(dir, "a.db")})
	require.NoError(t, err)
	defer st.Close()

	_, ok := st.(*SQLiteStore)
	assert.True(t, ok)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	assert.Error(t, err)
}

func TestCompletedRows(t *testing.T) {
	results := []model.RowResult{
		{Status: model.StatusCompleted},
		{Status: model.StatusSkipped},
		{Status: model.StatusError},
		{Status: model.StatusPending},
		{Status: model.StatusProcessing},
	}
	assert.Equal(t, 3, completedRows(results))
}
