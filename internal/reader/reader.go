// Package reader is the public entry point of the async read bridge: it
// turns a query plus any supported driver handle into dataframes.
package reader

import (
	"context"
	"errors"
	"fmt"

	"github.com/Liyixin95/polars/internal/batch"
	"github.com/Liyixin95/polars/internal/driver"
	"github.com/Liyixin95/polars/internal/frame"
)

// Options are the recognized execute options of a read.
type Options struct {
	// Parameters are bound query values, referenced as :name placeholders
	// (SQL) or $name values (document filters).
	Parameters map[string]any
	// IterBatches selects the multi-frame return shape.
	IterBatches bool
	// BatchSize bounds every batch's length except possibly the last.
	// Zero means a single batch containing the full result.
	BatchSize int
}

// Result is the return shape of ReadDatabase: exactly one field is set,
// Frames iff IterBatches was requested.
type Result struct {
	Frame  *frame.Frame
	Frames *batch.Frames
}

// ReadDatabase executes query against connection and returns either one
// fully-materialized frame or a lazy frame sequence, depending on the
// IterBatches option.
func ReadDatabase(ctx context.Context, query string, connection any, opts Options) (Result, error) {
	if opts.IterBatches {
		frames, err := ReadBatches(ctx, query, connection, opts)
		if err != nil {
			return Result{}, err
		}
		return Result{Frames: frames}, nil
	}

	f, err := Read(ctx, query, connection, opts)
	if err != nil {
		return Result{}, err
	}
	return Result{Frame: f}, nil
}

// Read executes query against connection and materializes the full result
// as one frame. It is safe to call both from top-level code and from within
// an already-running loop.
func Read(ctx context.Context, query string, connection any, opts Options) (*frame.Frame, error) {
	acquire, err := driver.Adapt(connection, driver.QuerySpec{
		Text:       query,
		Parameters: opts.Parameters,
	})
	if err != nil {
		return nil, err
	}

	it := batch.NewFrames(acquire, 0)
	defer it.Close(ctx)

	f, err := it.Next(ctx)
	if errors.Is(err, batch.Done) {
		// Zero rows still yields a frame carrying the result's columns.
		return frame.Build(it.Columns(), nil), nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ReadBatches executes query against connection and returns a lazy iterator
// of frames, one per row batch. A non-positive batch size degenerates to a
// single batch holding the whole result.
func ReadBatches(ctx context.Context, query string, connection any, opts Options) (*batch.Frames, error) {
	if opts.BatchSize < 0 {
		return nil, fmt.Errorf("reader: batch size must not be negative, got %d", opts.BatchSize)
	}

	acquire, err := driver.Adapt(connection, driver.QuerySpec{
		Text:       query,
		Parameters: opts.Parameters,
	})
	if err != nil {
		return nil, err
	}
	return batch.NewFrames(acquire, opts.BatchSize), nil
}
