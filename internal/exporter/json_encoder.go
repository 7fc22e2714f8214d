package exporter

import (
	"encoding/json"
	"io"
	"strconv"
)

// JSONEncoder emits JSON Lines: one object per frame row, keyed by column
// name. There is no header row; the column names become object keys.
type JSONEncoder struct {
	w       io.Writer
	columns []string
	err     error
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: w}
}

func (e *JSONEncoder) WriteHeader(columns []string) error {
	e.columns = columns
	return nil
}

func (e *JSONEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}

	obj := make(map[string]any, len(values))
	for i, v := range values {
		name := "column_" + strconv.Itoa(i)
		if i < len(e.columns) {
			name = e.columns[i]
		}
		if b, ok := v.([]byte); ok {
			obj[name] = string(b)
		} else {
			obj[name] = v
		}
	}

	data, err := json.Marshal(obj)
	if err != nil {
		e.err = err
		return err
	}
	if _, err := e.w.Write(data); err != nil {
		e.err = err
		return err
	}
	if _, err := e.w.Write([]byte("\n")); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *JSONEncoder) Flush() error {
	return nil
}

func (e *JSONEncoder) Error() error {
	return e.err
}

func (e *JSONEncoder) Close() error {
	return e.Flush()
}
