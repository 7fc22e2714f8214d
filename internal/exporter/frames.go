package exporter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Liyixin95/polars/internal/batch"
	"github.com/Liyixin95/polars/internal/frame"
)

// ReadStats contains metrics about one drained read.
type ReadStats struct {
	RowsProcessed int64
	Batches       int
	Duration      time.Duration
}

// WriteFrames drains a frame iterator into an encoder: header once, then
// every batch's rows in order. Memory stays bounded by the batch size since
// frames are encoded as they are pulled.
func WriteFrames(ctx context.Context, frames *batch.Frames, encoder RowEncoder) (*ReadStats, error) {
	start := time.Now()
	stats := &ReadStats{}
	wroteHeader := false

	for {
		f, err := frames.Next(ctx)
		if errors.Is(err, batch.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("frame fetch failed: %w", err)
		}

		if !wroteHeader {
			if err := encoder.WriteHeader(f.Columns); err != nil {
				return nil, fmt.Errorf("failed to write header: %w", err)
			}
			wroteHeader = true
		}

		if err := writeFrame(f, encoder); err != nil {
			return nil, err
		}
		stats.Batches++
		stats.RowsProcessed += int64(f.Height())
	}

	if !wroteHeader {
		// Zero batches: still emit the column header when known.
		if cols := frames.Columns(); len(cols) > 0 {
			if err := encoder.WriteHeader(cols); err != nil {
				return nil, fmt.Errorf("failed to write header: %w", err)
			}
		}
	}

	if err := encoder.Flush(); err != nil {
		return nil, fmt.Errorf("encoder flush failed: %w", err)
	}
	if err := encoder.Error(); err != nil {
		return nil, fmt.Errorf("encoder error: %w", err)
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// WriteFrame encodes a single materialized frame, header included.
func WriteFrame(f *frame.Frame, encoder RowEncoder) error {
	if err := encoder.WriteHeader(f.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writeFrame(f, encoder); err != nil {
		return err
	}
	if err := encoder.Flush(); err != nil {
		return fmt.Errorf("encoder flush failed: %w", err)
	}
	return encoder.Error()
}

func writeFrame(f *frame.Frame, encoder RowEncoder) error {
	for _, row := range f.Rows {
		if err := encoder.WriteRow(row); err != nil {
			return fmt.Errorf("row encode failed: %w", err)
		}
	}
	return nil
}
