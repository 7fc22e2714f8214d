// Package batch provides the lazy, pull-based sequence of row-batch frames
// produced by a batched read. Fetching is strictly sequential: each Next
// drives the underlying asynchronous row source for exactly one batch.
package batch

import (
	"context"
	"errors"

	"github.com/Liyixin95/polars/internal/bridge"
	"github.com/Liyixin95/polars/internal/driver"
	"github.com/Liyixin95/polars/internal/frame"
)

// Done is returned by Next when the sequence is exhausted.
var Done = errors.New("batch: no more frames")

// Frames is a restartable-from-scratch-only iterator over row batches. With
// a positive size every frame except possibly the last has exactly size
// rows; with size <= 0 the whole result materializes as one frame.
type Frames struct {
	acquire driver.Acquire
	size    int

	src       driver.RowSource
	columns   []string
	exhausted bool
}

// NewFrames builds an iterator over one execution of acquire. The source is
// not opened until the first Next call.
func NewFrames(acquire driver.Acquire, size int) *Frames {
	return &Frames{acquire: acquire, size: size}
}

// BatchSize returns the configured batch size (0 means unbatched).
func (it *Frames) BatchSize() int {
	if it.size < 0 {
		return 0
	}
	return it.size
}

// Columns returns the column names once the source has been opened.
func (it *Frames) Columns() []string {
	return it.columns
}

// Next fetches the next row batch and assembles it into a frame. It may
// suspend: the fetch runs under the bridge's scheduling rules, so Next works
// identically from top-level code and from within a running loop. At
// exhaustion it returns Done and releases the source.
func (it *Frames) Next(ctx context.Context) (*frame.Frame, error) {
	if it.exhausted {
		return nil, Done
	}

	result, err := bridge.Run(ctx, bridge.Coroutine(func(ctx context.Context) (any, error) {
		if it.src == nil {
			src, err := it.acquire(ctx)
			if err != nil {
				return nil, err
			}
			it.src = src
			it.columns = src.Columns()
		}
		return it.src.Fetch(ctx, it.size)
	}))
	if err != nil {
		// Close the cursor before propagating, including on cancellation.
		_ = it.Close(ctx)
		return nil, err
	}

	records, _ := result.([]frame.Record)
	if len(records) == 0 {
		_ = it.Close(ctx)
		return nil, Done
	}
	if it.size <= 0 {
		// Unbatched mode degenerates to a single frame.
		it.exhausted = true
		_ = it.closeSource(ctx)
	}

	columns := it.columns
	if len(columns) == 0 {
		columns = nil
	}
	return frame.Build(columns, records), nil
}

// Collect drains the iterator and returns every remaining frame in order.
func (it *Frames) Collect(ctx context.Context) ([]*frame.Frame, error) {
	var frames []*frame.Frame
	for {
		f, err := it.Next(ctx)
		if errors.Is(err, Done) {
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
}

// Close releases the underlying source and marks the iterator exhausted.
// Restarting a sequence requires a fresh iterator.
func (it *Frames) Close(ctx context.Context) error {
	it.exhausted = true
	return it.closeSource(ctx)
}

func (it *Frames) closeSource(ctx context.Context) error {
	if it.src == nil {
		return nil
	}
	src := it.src
	it.src = nil
	return src.Close(ctx)
}
