package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_ExplicitColumns(t *testing.T) {
	f := Build([]string{"id", "name"}, []Record{
		{"id": 1, "name": "misc"},
		{"id": 2, "name": "other"},
	})

	assert.Equal(t, []string{"id", "name"}, f.Columns)
	assert.Equal(t, [][]any{{1, "misc"}, {2, "other"}}, f.Rows)
	assert.Equal(t, 2, f.Height())
	assert.Equal(t, 2, f.Width())
}

func TestBuild_InfersColumnsWhenNil(t *testing.T) {
	f := Build(nil, []Record{
		{"name": "misc", "id": 1},
	})

	assert.Equal(t, []string{"id", "name"}, f.Columns)
	assert.Equal(t, [][]any{{1, "misc"}}, f.Rows)
}

func TestBuild_MissingKeysBecomeNil(t *testing.T) {
	f := Build([]string{"id", "name", "extra"}, []Record{
		{"id": 1, "name": "misc"},
	})

	assert.Equal(t, [][]any{{1, "misc", nil}}, f.Rows)
}

func TestBuild_EmptyRecordsKeepColumns(t *testing.T) {
	f := Build([]string{"id", "name"}, nil)
	assert.Equal(t, []string{"id", "name"}, f.Columns)
	assert.Equal(t, 0, f.Height())
}

func TestInferColumns_Deterministic(t *testing.T) {
	records := []Record{
		{"name": "a", "id": 1},
		{"id": 2, "name": "b"},
	}

	first := InferColumns(records)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, InferColumns(records))
	}
	assert.Equal(t, []string{"id", "name"}, first)
}

func TestInferColumns_LateKeysAppendAfterFirstRecord(t *testing.T) {
	columns := InferColumns([]Record{
		{"id": 1, "name": "a"},
		{"id": 2, "name": "b", "tags": []string{"x"}, "checked": false},
	})

	assert.Equal(t, []string{"id", "name", "checked", "tags"}, columns)
}

func TestColumn(t *testing.T) {
	f := Build([]string{"id", "name"}, []Record{
		{"id": 1, "name": "misc"},
		{"id": 2, "name": "other"},
	})

	names, ok := f.Column("name")
	require.True(t, ok)
	assert.Equal(t, []any{"misc", "other"}, names)

	_, ok = f.Column("missing")
	assert.False(t, ok)
}

func TestConcat(t *testing.T) {
	a := Build([]string{"id"}, []Record{{"id": 1}, {"id": 2}})
	b := Build([]string{"id"}, []Record{{"id": 3}})

	out := a.Concat(b)
	assert.Equal(t, 3, out.Height())
	assert.Equal(t, [][]any{{1}, {2}, {3}}, out.Rows)

	// Inputs are untouched.
	assert.Equal(t, 2, a.Height())
	assert.Equal(t, 1, b.Height())
}
