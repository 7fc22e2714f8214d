// Package driver normalizes heterogeneous database handles into a uniform
// asynchronous row source. Handles are classified by capability set, not by
// concrete type: anything that can execute directly, connect first, mint
// sessions, or answer document-RPC queries can feed a read.
package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/Liyixin95/polars/internal/frame"
)

// ErrConnectionFailure is returned when a handle exposes none of the known
// capability sets.
var ErrConnectionFailure = errors.New("driver: connection handle not recognized")

// QuerySpec describes one execution of a query.
type QuerySpec struct {
	Text       string
	Parameters map[string]any
}

// RowSource is an open cursor over one query's results. Fetch returns up to
// n records in driver order; n <= 0 drains the remainder. An exhausted
// source returns an empty batch and no error.
type RowSource interface {
	Columns() []string
	Fetch(ctx context.Context, n int) ([]frame.Record, error)
	Close(ctx context.Context) error
}

// Executor is an already-open connection or session: it can run a statement
// directly. The bridge never closes an Executor; the caller owns it.
type Executor interface {
	Execute(ctx context.Context, query string, params map[string]any) (RowSource, error)
}

// Conn is a scoped connection obtained from a Connector. Closing it releases
// the connection back to its engine.
type Conn interface {
	Executor
	Close(ctx context.Context) error
}

// Connector is an engine-like handle: each read opens one transient
// connection which must be released on every exit path.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// Session is a transient unit of work minted by a SessionFactory.
type Session interface {
	Executor
	Close(ctx context.Context) error
}

// SessionFactory mints sessions. A factory handle means "instantiate a
// session first, then execute"; the session is closed when the read ends.
type SessionFactory interface {
	Session() Session
}

// DocumentClient is an RPC-style document database handle: namespace
// selection plus a generic query method returning an enveloped response.
type DocumentClient interface {
	Use(ctx context.Context, namespace, database string) error
	Query(ctx context.Context, query string, vars map[string]any) (any, error)
}

// Acquire opens the row source for one execution of a query. Batched reads
// call it once per iteration sequence; restarting a sequence re-acquires.
type Acquire func(ctx context.Context) (RowSource, error)

// Adapt classifies handle by capability set and returns the acquisition
// step for spec. Classification is resolved once, at adapter entry.
func Adapt(handle any, spec QuerySpec) (Acquire, error) {
	switch h := handle.(type) {
	case Executor:
		return func(ctx context.Context) (RowSource, error) {
			return h.Execute(ctx, spec.Text, spec.Parameters)
		}, nil

	case Connector:
		return func(ctx context.Context) (RowSource, error) {
			conn, err := h.Connect(ctx)
			if err != nil {
				return nil, fmt.Errorf("driver: connect failed: %w", err)
			}
			src, err := conn.Execute(ctx, spec.Text, spec.Parameters)
			if err != nil {
				_ = conn.Close(ctx)
				return nil, err
			}
			return &scopedSource{RowSource: src, scope: conn}, nil
		}, nil

	case SessionFactory:
		return func(ctx context.Context) (RowSource, error) {
			sess := h.Session()
			src, err := sess.Execute(ctx, spec.Text, spec.Parameters)
			if err != nil {
				_ = sess.Close(ctx)
				return nil, err
			}
			return &scopedSource{RowSource: src, scope: sess}, nil
		}, nil

	case DocumentClient:
		return func(ctx context.Context) (RowSource, error) {
			raw, err := h.Query(ctx, spec.Text, spec.Parameters)
			if err != nil {
				return nil, err
			}
			records, err := Unwrap(raw)
			if err != nil {
				return nil, err
			}
			return NewMemorySource(nil, records), nil
		}, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrConnectionFailure, handle)
	}
}

// scopedSource couples a cursor to the transient connection or session it
// was executed on, so closing the source releases both.
type scopedSource struct {
	RowSource
	scope interface {
		Close(ctx context.Context) error
	}
}

func (s *scopedSource) Close(ctx context.Context) error {
	err := s.RowSource.Close(ctx)
	if scopeErr := s.scope.Close(ctx); err == nil {
		err = scopeErr
	}
	return err
}

// MemorySource serves an already-materialized result set, as produced by
// document-RPC responses. Columns are inferred when not supplied.
type MemorySource struct {
	columns []string
	records []frame.Record
	pos     int
}

func NewMemorySource(columns []string, records []frame.Record) *MemorySource {
	if columns == nil {
		columns = frame.InferColumns(records)
	}
	return &MemorySource{columns: columns, records: records}
}

func (s *MemorySource) Columns() []string {
	return s.columns
}

func (s *MemorySource) Fetch(ctx context.Context, n int) ([]frame.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	remaining := len(s.records) - s.pos
	if remaining == 0 {
		return nil, nil
	}
	if n <= 0 || n > remaining {
		n = remaining
	}
	batch := s.records[s.pos : s.pos+n]
	s.pos += n
	return batch, nil
}

func (s *MemorySource) Close(ctx context.Context) error {
	s.pos = len(s.records)
	return nil
}
