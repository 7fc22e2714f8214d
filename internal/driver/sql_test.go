package driver

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liyixin95/polars/internal/frame"
)

// newFixtureDB creates a file-backed sqlite database seeded with the
// canonical fixture rows. A file (not :memory:) so that every pooled
// connection sees the same data.
func newFixtureDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE test_data (id INTEGER PRIMARY KEY, name TEXT, value REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(
		`INSERT INTO test_data (id, name, value) VALUES (?, ?, ?), (?, ?, ?)`,
		1, "misc", 100.0,
		2, "other", -99.5,
	)
	require.NoError(t, err)
	return path
}

func drainSQL(t *testing.T, handle any, query string, params map[string]any) ([]string, []frame.Record) {
	t.Helper()
	ctx := context.Background()

	acquire, err := Adapt(handle, QuerySpec{Text: query, Parameters: params})
	require.NoError(t, err)

	src, err := acquire(ctx)
	require.NoError(t, err)
	defer src.Close(ctx)

	records, err := src.Fetch(ctx, 0)
	require.NoError(t, err)
	return src.Columns(), records
}

func TestSQLEngine_ConnectorRead(t *testing.T) {
	engine := NewSQLiteEngine(newFixtureDB(t))
	defer engine.Close()

	columns, records := drainSQL(t, engine, "SELECT id, name, value FROM test_data ORDER BY id", nil)

	assert.Equal(t, []string{"id", "name", "value"}, columns)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0]["id"])
	assert.Equal(t, "misc", records[0]["name"])
	assert.Equal(t, 100.0, records[0]["value"])
	assert.Equal(t, int64(2), records[1]["id"])
	assert.Equal(t, -99.5, records[1]["value"])
}

func TestSQLEngine_OrderFollowsQuery(t *testing.T) {
	engine := NewSQLiteEngine(newFixtureDB(t))
	defer engine.Close()

	_, records := drainSQL(t, engine, "SELECT id FROM test_data ORDER BY id DESC", nil)

	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0]["id"])
	assert.Equal(t, int64(1), records[1]["id"])
}

func TestSQLEngine_NamedParameters(t *testing.T) {
	engine := NewSQLiteEngine(newFixtureDB(t))
	defer engine.Close()

	_, records := drainSQL(t, engine,
		"SELECT id, name FROM test_data WHERE value > :min ORDER BY id",
		map[string]any{"min": 0.0},
	)

	require.Len(t, records, 1)
	assert.Equal(t, "misc", records[0]["name"])
}

func TestSQLEngine_EmptyResultKeepsColumns(t *testing.T) {
	engine := NewSQLiteEngine(newFixtureDB(t))
	defer engine.Close()

	columns, records := drainSQL(t, engine, "SELECT id, name FROM test_data WHERE id > 100", nil)

	assert.Equal(t, []string{"id", "name"}, columns)
	assert.Empty(t, records)
}

func TestSQLEngine_BatchedFetch(t *testing.T) {
	ctx := context.Background()
	engine := NewSQLiteEngine(newFixtureDB(t))
	defer engine.Close()

	acquire, err := Adapt(engine, QuerySpec{Text: "SELECT id FROM test_data ORDER BY id"})
	require.NoError(t, err)

	src, err := acquire(ctx)
	require.NoError(t, err)
	defer src.Close(ctx)

	first, err := src.Fetch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := src.Fetch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)

	empty, err := src.Fetch(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSessionMaker_Read(t *testing.T) {
	engine := NewSQLiteEngine(newFixtureDB(t))
	defer engine.Close()
	maker := NewSessionMaker(engine)

	_, records := drainSQL(t, maker, "SELECT id, name, value FROM test_data ORDER BY id", nil)
	require.Len(t, records, 2)
	assert.Equal(t, "other", records[1]["name"])
}

func TestSQLEngine_OpenConnectionIsExecutor(t *testing.T) {
	ctx := context.Background()
	engine := NewSQLiteEngine(newFixtureDB(t))
	defer engine.Close()

	conn, err := engine.Connect(ctx)
	require.NoError(t, err)
	defer conn.Close(ctx)

	// An already-open connection is a handle of its own: the adapter
	// executes on it directly and never closes it.
	_, records := drainSQL(t, conn, "SELECT id FROM test_data ORDER BY id", nil)
	require.Len(t, records, 2)

	// Still usable after the read.
	_, records = drainSQL(t, conn, "SELECT id FROM test_data WHERE id = 1", nil)
	require.Len(t, records, 1)
}

func TestSQLEngine_QueryErrorClosesConnection(t *testing.T) {
	engine := NewSQLiteEngine(newFixtureDB(t))
	defer engine.Close()

	acquire, err := Adapt(engine, QuerySpec{Text: "SELECT nope FROM missing_table"})
	require.NoError(t, err)

	_, err = acquire(context.Background())
	require.Error(t, err)
}
