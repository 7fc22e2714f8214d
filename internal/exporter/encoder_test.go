package exporter

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewCSVEncoder(&buf)

	require.NoError(t, enc.WriteHeader([]string{"id", "name", "value"}))
	require.NoError(t, enc.WriteRow([]any{int64(1), "misc", 100.0}))
	require.NoError(t, enc.WriteRow([]any{int64(2), "other", -99.5}))
	require.NoError(t, enc.Close())

	// Negative numbers pick up the formula-injection guard.
	assert.Equal(t, "id,name,value\n1,misc,100\n2,other,'-99.5\n", buf.String())
}

func TestCSVEncoder_ValueRendering(t *testing.T) {
	var buf bytes.Buffer
	enc := NewCSVEncoder(&buf)

	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	require.NoError(t, enc.WriteHeader([]string{"a", "b", "c", "d", "e"}))
	require.NoError(t, enc.WriteRow([]any{nil, []byte("bytes"), ts, true, "=SUM(A1)"}))
	require.NoError(t, enc.Close())

	assert.Equal(t, "a,b,c,d,e\nNULL,bytes,2024-03-01 12:30:00,true,'=SUM(A1)\n", buf.String())
}

func TestJSONEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewJSONEncoder(&buf)

	require.NoError(t, enc.WriteHeader([]string{"id", "name"}))
	require.NoError(t, enc.WriteRow([]any{int64(1), "misc"}))
	require.NoError(t, enc.WriteRow([]any{int64(2), []byte("other")}))
	require.NoError(t, enc.Close())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, float64(1), first["id"])
	assert.Equal(t, "misc", first["name"])

	var second map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "other", second["name"], "byte values must render as strings")
}

func TestJSONEncoder_FallbackColumnNames(t *testing.T) {
	var buf bytes.Buffer
	enc := NewJSONEncoder(&buf)

	require.NoError(t, enc.WriteHeader([]string{"id"}))
	require.NoError(t, enc.WriteRow([]any{int64(1), "extra"}))

	var obj map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &obj))
	assert.Equal(t, "extra", obj["column_1"])
}

func TestNew_FormatSelection(t *testing.T) {
	var buf bytes.Buffer

	assert.IsType(t, &JSONEncoder{}, New("json", &buf))
	assert.IsType(t, &ExcelEncoder{}, New("excel", &buf))
	assert.IsType(t, &ExcelEncoder{}, New("xlsx", &buf))
	assert.IsType(t, &PDFEncoder{}, New("pdf", &buf))
	assert.IsType(t, &CSVEncoder{}, New("csv", &buf))
	assert.IsType(t, &CSVEncoder{}, New("", &buf))
	assert.IsType(t, &CSVEncoder{}, New("unknown", &buf))
}
