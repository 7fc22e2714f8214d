package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// excelMaxRows is the hard sheet limit of the xlsx format.
const excelMaxRows = 1048576

// ExcelEncoder renders frames to an .xlsx workbook through the excelize
// StreamWriter, keeping memory flat even for large results.
type ExcelEncoder struct {
	f         *excelize.File
	sw        *excelize.StreamWriter
	w         io.Writer
	rowIdx    int
	finalized bool
	err       error
}

func NewExcelEncoder(w io.Writer) *ExcelEncoder {
	f := excelize.NewFile()
	sw, err := f.NewStreamWriter("Sheet1")
	if err != nil {
		return &ExcelEncoder{err: err}
	}
	return &ExcelEncoder{
		f:      f,
		sw:     sw,
		w:      w,
		rowIdx: 1,
	}
}

func (e *ExcelEncoder) WriteHeader(columns []string) error {
	if e.err != nil {
		return e.err
	}
	row := make([]any, len(columns))
	for i, col := range columns {
		row[i] = col
	}
	return e.setRow(row)
}

func (e *ExcelEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}

	row := make([]any, len(values))
	for i, v := range values {
		var s string
		switch val := v.(type) {
		case []byte:
			s = string(val)
		case string:
			s = val
		case nil:
			s = "NULL"
		default:
			// Numbers, bools and times are cell types excelize handles
			// natively.
			row[i] = v
			continue
		}

		// Formula injection mitigation, same policy as CSV.
		if len(s) > 0 {
			first := s[0]
			if first == '=' || first == '+' || first == '-' || first == '@' {
				s = "'" + s
			}
		}
		row[i] = s
	}
	return e.setRow(row)
}

func (e *ExcelEncoder) setRow(row []any) error {
	cell, err := excelize.CoordinatesToCellName(1, e.rowIdx)
	if err != nil {
		e.err = err
		return err
	}
	if err := e.sw.SetRow(cell, row); err != nil {
		e.err = err
		return err
	}
	e.rowIdx++
	if e.rowIdx > excelMaxRows {
		e.err = fmt.Errorf("excel row limit exceeded (%d rows)", excelMaxRows)
		return e.err
	}
	return nil
}

// Flush finalizes the stream and writes the whole workbook. The xlsx zip
// structure only exists once, so Flush is effectively terminal.
func (e *ExcelEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if e.finalized {
		return nil
	}
	if err := e.sw.Flush(); err != nil {
		e.err = err
		return err
	}
	e.finalized = true
	return e.f.Write(e.w)
}

func (e *ExcelEncoder) Error() error {
	return e.err
}

func (e *ExcelEncoder) Close() error {
	err := e.Flush()
	if e.f != nil {
		_ = e.f.Close()
	}
	return err
}
