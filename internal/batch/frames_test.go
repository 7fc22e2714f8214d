package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liyixin95/polars/internal/driver"
	"github.com/Liyixin95/polars/internal/frame"
)

var testRecords = []frame.Record{
	{"id": int64(1), "name": "a"},
	{"id": int64(2), "name": "b"},
	{"id": int64(3), "name": "c"},
}

var testColumns = []string{"id", "name"}

// trackedSource wraps a memory source and records lifecycle events.
type trackedSource struct {
	driver.RowSource
	closed   *int
	fetchErr error
}

func (s *trackedSource) Fetch(ctx context.Context, n int) ([]frame.Record, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.RowSource.Fetch(ctx, n)
}

func (s *trackedSource) Close(ctx context.Context) error {
	*s.closed++
	return s.RowSource.Close(ctx)
}

func memAcquire(acquires, closed *int, fetchErr error) driver.Acquire {
	return func(ctx context.Context) (driver.RowSource, error) {
		*acquires++
		return &trackedSource{
			RowSource: driver.NewMemorySource(testColumns, testRecords),
			closed:    closed,
			fetchErr:  fetchErr,
		}, nil
	}
}

func TestFrames_BatchCounts(t *testing.T) {
	cases := []struct {
		size    int
		heights []int
	}{
		{size: 0, heights: []int{3}},
		{size: 1, heights: []int{1, 1, 1}},
		{size: 2, heights: []int{2, 1}},
		{size: 3, heights: []int{3}},
		{size: 4, heights: []int{3}},
	}

	for _, tc := range cases {
		var acquires, closed int
		it := NewFrames(memAcquire(&acquires, &closed, nil), tc.size)

		frames, err := it.Collect(context.Background())
		require.NoError(t, err)

		heights := make([]int, 0, len(frames))
		for _, f := range frames {
			heights = append(heights, f.Height())
		}
		assert.Equal(t, tc.heights, heights, "batch size %d", tc.size)
		assert.Equal(t, 1, acquires, "one acquisition per sequence")
		assert.Equal(t, 1, closed, "exhaustion must release the source")
	}
}

func TestFrames_ConcatenationEqualsFullRead(t *testing.T) {
	ctx := context.Background()

	var a, c int
	full, err := NewFrames(memAcquire(&a, &c, nil), 0).Collect(ctx)
	require.NoError(t, err)
	require.Len(t, full, 1)

	batched, err := NewFrames(memAcquire(&a, &c, nil), 2).Collect(ctx)
	require.NoError(t, err)
	require.Len(t, batched, 2)

	joined := batched[0].Concat(batched[1])
	assert.Equal(t, full[0].Columns, joined.Columns)
	assert.Equal(t, full[0].Rows, joined.Rows)
}

func TestFrames_NextAfterExhaustionReturnsDone(t *testing.T) {
	ctx := context.Background()
	var a, c int
	it := NewFrames(memAcquire(&a, &c, nil), 2)

	_, err := it.Collect(ctx)
	require.NoError(t, err)

	_, err = it.Next(ctx)
	assert.ErrorIs(t, err, Done)
	_, err = it.Next(ctx)
	assert.ErrorIs(t, err, Done)
}

func TestFrames_LazyAcquisition(t *testing.T) {
	ctx := context.Background()
	var acquires, closed int
	it := NewFrames(memAcquire(&acquires, &closed, nil), 1)

	assert.Equal(t, 0, acquires, "source must not open before the first Next")

	_, err := it.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, acquires)
	assert.Equal(t, testColumns, it.Columns())

	require.NoError(t, it.Close(ctx))
	assert.Equal(t, 1, closed)
}

func TestFrames_FetchErrorClosesSource(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("fetch exploded")
	var acquires, closed int
	it := NewFrames(memAcquire(&acquires, &closed, boom), 2)

	_, err := it.Next(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, closed, "cursor must be closed before the error propagates")

	_, err = it.Next(ctx)
	assert.ErrorIs(t, err, Done)
}

func TestFrames_CancellationClosesSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var acquires, closed int
	it := NewFrames(memAcquire(&acquires, &closed, nil), 1)

	_, err := it.Next(ctx)
	require.NoError(t, err)

	cancel()
	_, err = it.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, closed)
}

func TestFrames_UnbatchedReleasesSourceEagerly(t *testing.T) {
	ctx := context.Background()
	var acquires, closed int
	it := NewFrames(memAcquire(&acquires, &closed, nil), 0)

	f, err := it.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Height())
	assert.Equal(t, 1, closed, "single-frame mode releases the source with the frame")

	_, err = it.Next(ctx)
	assert.ErrorIs(t, err, Done)
}

func TestFrames_BatchSizeAccessor(t *testing.T) {
	assert.Equal(t, 2, NewFrames(nil, 2).BatchSize())
	assert.Equal(t, 0, NewFrames(nil, 0).BatchSize())
	assert.Equal(t, 0, NewFrames(nil, -1).BatchSize())
}
