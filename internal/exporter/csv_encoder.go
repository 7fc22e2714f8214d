package exporter

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// CSVEncoder wraps encoding/csv with type-aware value rendering. A bufio
// layer keeps syscall counts low when frames stream batch by batch.
type CSVEncoder struct {
	w       *csv.Writer
	buf     *bufio.Writer
	columns []string
}

// NewCSVEncoder creates a CSV encoder writing to w with a 64KB buffer.
func NewCSVEncoder(w io.Writer) *CSVEncoder {
	buf := bufio.NewWriterSize(w, 64*1024)
	return &CSVEncoder{
		w:   csv.NewWriter(buf),
		buf: buf,
	}
}

func (e *CSVEncoder) WriteHeader(columns []string) error {
	e.columns = columns
	return e.w.Write(columns)
}

// WriteRow renders one frame row. Values arrive as whatever the driver
// scanned, so rendering goes through toString rather than fmt.Sprintf.
func (e *CSVEncoder) WriteRow(values []any) error {
	record := make([]string, len(values))
	for i, v := range values {
		record[i] = toString(v)
	}
	return e.w.Write(record)
}

func (e *CSVEncoder) Flush() error {
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		return err
	}
	return e.buf.Flush()
}

func (e *CSVEncoder) Error() error {
	return e.w.Error()
}

func (e *CSVEncoder) Close() error {
	return e.Flush()
}

func toString(val any) string {
	var s string
	switch v := val.(type) {
	case nil:
		s = "NULL"
	case []byte:
		s = string(v)
	case string:
		s = v
	case time.Time:
		s = v.Format("2006-01-02 15:04:05")
	case int64:
		s = strconv.FormatInt(v, 10)
	case int:
		s = strconv.Itoa(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(v)
	default:
		s = ""
	}

	// Formula injection mitigation: spreadsheet tools treat leading
	// = + - @ as formulas.
	if len(s) > 0 {
		first := s[0]
		if first == '=' || first == '+' || first == '-' || first == '@' {
			s = "'" + s
		}
	}
	return s
}
