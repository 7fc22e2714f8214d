// Package exporter encodes assembled frames into on-disk formats. Encoders
// consume rows incrementally so that batched reads stream straight to
// storage without rematerializing the full result.
package exporter

import "io"

// RowEncoder is the common interface over the snapshot formats (CSV, JSON
// Lines, Excel, PDF).
type RowEncoder interface {
	// WriteHeader records the frame's column names. Called exactly once,
	// before any rows.
	WriteHeader(columns []string) error

	// WriteRow writes one frame row. The values follow the header order.
	WriteRow(values []any) error

	// Flush pushes buffered data to the underlying writer.
	Flush() error

	// Error returns the first error encountered while encoding, if any.
	Error() error

	// Close flushes and releases encoder resources. Formats with trailing
	// structure (Excel's zip directory, the PDF trailer) finalize here.
	io.Closer
}

// New returns the encoder for a format name, defaulting to CSV.
func New(format string, w io.Writer) RowEncoder {
	switch format {
	case "json":
		return NewJSONEncoder(w)
	case "excel", "xlsx":
		return NewExcelEncoder(w)
	case "pdf":
		return NewPDFEncoder(w)
	default:
		return NewCSVEncoder(w)
	}
}
