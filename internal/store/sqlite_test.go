package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/model"
)

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Migrate(ctx))
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	run := sampleRun("a.json")
	require.NoError(t, st.SaveRun(ctx, run))
	require.NoError(t, st.Close())

	reopened, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer reopened.Close() //nolint:errcheck

	got, err := reopened.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Summary, got.Summary)
}

func TestSQLite_SaveNilRun(t *testing.T) {
	st := newTestSQLite(t)
	err := st.SaveRun(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil run")
}

func TestSQLite_SaveRunRollsBackOnFailure(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	run := sampleRun("a.json")
	run.Report.Resolutions[0].ResolvedValue = make(chan int) // not JSON-encodable
	require.Error(t, st.SaveRun(ctx, run))

	_, err := st.GetRun(ctx, run.ID)
	assert.Error(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSQLite_UnmigratedQueriesFail(t *testing.T) {
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	ctx := context.Background()
	_, err = st.ListRuns(ctx, RunFilter{})
	assert.Error(t, err)
	_, err = st.ListFields(ctx)
	assert.Error(t, err)
	assert.Error(t, st.SaveRun(ctx, &model.Run{}))
}
