package reader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liyixin95/polars/internal/bridge"
	"github.com/Liyixin95/polars/internal/driver"
	"github.com/Liyixin95/polars/internal/frame"
)

// docClient mimics a document-RPC backend: three schemaless records wrapped
// in a status envelope, the way such databases answer a find query.
type docClient struct {
	queries []string
	vars    []map[string]any
	fail    bool
}

func (c *docClient) Use(ctx context.Context, namespace, database string) error {
	return nil
}

func (c *docClient) Query(ctx context.Context, query string, vars map[string]any) (any, error) {
	c.queries = append(c.queries, query)
	c.vars = append(c.vars, vars)

	status := "OK"
	if c.fail {
		status = "ERR"
	}
	return []any{
		map[string]any{
			"result": []any{
				map[string]any{"id": "item:1", "name": "alice", "tags": []any{"a"}, "checked": true},
				map[string]any{"id": "item:2", "name": "bob", "tags": []any{"b", "c"}, "checked": false},
				map[string]any{"id": "item:3", "name": "carol", "tags": []any{}, "checked": true},
			},
			"status": status,
			"time":   "32.083µs",
		},
	}, nil
}

func TestRead_DocumentClient(t *testing.T) {
	client := &docClient{}
	f, err := Read(context.Background(), "SELECT * FROM items", client, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"checked", "id", "name", "tags"}, f.Columns)
	require.Equal(t, 3, f.Height())

	names, ok := f.Column("name")
	require.True(t, ok)
	assert.Equal(t, []any{"alice", "bob", "carol"}, names)
}

func TestRead_ForwardsParameters(t *testing.T) {
	client := &docClient{}
	params := map[string]any{"name": "alice"}

	_, err := Read(context.Background(), "SELECT * FROM items WHERE name = $name", client, Options{
		Parameters: params,
	})
	require.NoError(t, err)
	require.Len(t, client.vars, 1)
	assert.Equal(t, params, client.vars[0])
}

func TestRead_MalformedStatus(t *testing.T) {
	client := &docClient{fail: true}
	_, err := Read(context.Background(), "SELECT * FROM items", client, Options{})

	var malformed *driver.MalformedResultError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "ERR", malformed.Status)
	assert.Equal(t, "32.083µs", malformed.Time)
}

func TestRead_UnknownHandle(t *testing.T) {
	_, err := Read(context.Background(), "SELECT 1", struct{}{}, Options{})
	assert.ErrorIs(t, err, driver.ErrConnectionFailure)
}

func TestRead_EmptyResultYieldsEmptyFrame(t *testing.T) {
	exec := &emptyExecutor{columns: []string{"id", "name"}}
	f, err := Read(context.Background(), "SELECT id, name FROM items WHERE 1=0", exec, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, f.Columns)
	assert.Equal(t, 0, f.Height())
}

type emptyExecutor struct {
	columns []string
}

func (e *emptyExecutor) Execute(ctx context.Context, query string, params map[string]any) (driver.RowSource, error) {
	return driver.NewMemorySource(e.columns, nil), nil
}

func TestReadBatches_ConcatEqualsRead(t *testing.T) {
	ctx := context.Background()

	full, err := Read(ctx, "SELECT * FROM items", &docClient{}, Options{})
	require.NoError(t, err)

	for _, size := range []int{1, 2, 3, 4} {
		frames, err := ReadBatches(ctx, "SELECT * FROM items", &docClient{}, Options{BatchSize: size})
		require.NoError(t, err)

		collected, err := frames.Collect(ctx)
		require.NoError(t, err)

		expected := (3 + size - 1) / size
		require.Len(t, collected, expected, "batch size %d", size)

		joined := collected[0]
		for _, f := range collected[1:] {
			joined = joined.Concat(f)
		}
		assert.Equal(t, full.Columns, joined.Columns, "batch size %d", size)
		assert.Equal(t, full.Rows, joined.Rows, "batch size %d", size)
	}
}

func TestReadBatches_NegativeBatchSize(t *testing.T) {
	_, err := ReadBatches(context.Background(), "SELECT * FROM items", &docClient{}, Options{BatchSize: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch size")
}

func TestReadBatches_ZeroSizeSingleFrame(t *testing.T) {
	ctx := context.Background()
	frames, err := ReadBatches(ctx, "SELECT * FROM items", &docClient{}, Options{})
	require.NoError(t, err)

	collected, err := frames.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, collected, 1)
	assert.Equal(t, 3, collected[0].Height())
}

func TestReadDatabase_ReturnShape(t *testing.T) {
	ctx := context.Background()

	res, err := ReadDatabase(ctx, "SELECT * FROM items", &docClient{}, Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Frame)
	assert.Nil(t, res.Frames)

	res, err = ReadDatabase(ctx, "SELECT * FROM items", &docClient{}, Options{IterBatches: true, BatchSize: 2})
	require.NoError(t, err)
	require.NotNil(t, res.Frames)
	assert.Nil(t, res.Frame)

	collected, err := res.Frames.Collect(ctx)
	require.NoError(t, err)
	assert.Len(t, collected, 2)
}

func TestRead_InsideRunningLoop(t *testing.T) {
	// A read issued from within coroutine code must behave exactly like a
	// top-level read.
	direct, err := Read(context.Background(), "SELECT * FROM items", &docClient{}, Options{})
	require.NoError(t, err)

	nested, err := bridge.Run(context.Background(), bridge.Coroutine(func(ctx context.Context) (any, error) {
		return Read(ctx, "SELECT * FROM items", &docClient{}, Options{})
	}))
	require.NoError(t, err)

	nestedFrame, ok := nested.(*frame.Frame)
	require.True(t, ok)
	assert.Equal(t, direct.Columns, nestedFrame.Columns)
	assert.Equal(t, direct.Rows, nestedFrame.Rows)
}

func TestReadBatches_IterationInsideRunningLoop(t *testing.T) {
	value, err := bridge.Run(context.Background(), bridge.Coroutine(func(ctx context.Context) (any, error) {
		frames, err := ReadBatches(ctx, "SELECT * FROM items", &docClient{}, Options{BatchSize: 2})
		if err != nil {
			return nil, err
		}
		return frames.Collect(ctx)
	}))
	require.NoError(t, err)

	collected, ok := value.([]*frame.Frame)
	require.True(t, ok)
	require.Len(t, collected, 2)
	assert.Equal(t, 2, collected[0].Height())
	assert.Equal(t, 1, collected[1].Height())
}
