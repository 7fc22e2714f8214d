package driver

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Liyixin95/polars/internal/frame"
)

// SQLEngine is an engine-like handle over database/sql. It implements
// Connector: every read borrows one connection and releases it when the
// cursor is closed.
type SQLEngine struct {
	driverName string
	dsn        string
	db         *sql.DB
}

func NewMySQLEngine(dsn string) *SQLEngine {
	return &SQLEngine{driverName: "mysql", dsn: dsn}
}

func NewPostgresEngine(dsn string) *SQLEngine {
	return &SQLEngine{driverName: "postgres", dsn: dsn}
}

func NewSQLiteEngine(path string) *SQLEngine {
	return &SQLEngine{driverName: "sqlite3", dsn: path}
}

func (e *SQLEngine) Name() string {
	return e.driverName
}

// Connect borrows a single connection from the pool.
func (e *SQLEngine) Connect(ctx context.Context) (Conn, error) {
	if err := e.open(); err != nil {
		return nil, err
	}
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &sqlConn{conn: conn}, nil
}

func (e *SQLEngine) open() error {
	if e.db != nil {
		return nil
	}
	// Lazy connect, same as pinging on first use.
	db, err := sql.Open(e.driverName, e.dsn)
	if err != nil {
		return err
	}
	e.db = db
	return nil
}

func (e *SQLEngine) Ping(ctx context.Context) error {
	if err := e.open(); err != nil {
		return err
	}
	return e.db.PingContext(ctx)
}

func (e *SQLEngine) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

type sqlConn struct {
	conn *sql.Conn
}

func (c *sqlConn) Execute(ctx context.Context, query string, params map[string]any) (RowSource, error) {
	rows, err := c.conn.QueryContext(ctx, query, namedArgs(params)...)
	if err != nil {
		return nil, fmt.Errorf("driver: query execution failed: %w", err)
	}
	return newSQLRows(rows)
}

func (c *sqlConn) Close(ctx context.Context) error {
	return c.conn.Close()
}

// SessionMaker mints transient sessions from an engine, for callers that
// hold a factory rather than an engine or open connection.
type SessionMaker struct {
	engine *SQLEngine
}

func NewSessionMaker(engine *SQLEngine) *SessionMaker {
	return &SessionMaker{engine: engine}
}

func (m *SessionMaker) Session() Session {
	return &sqlSession{engine: m.engine}
}

// sqlSession lazily borrows its connection on first execute. A session
// handed out by a SessionMaker is also a valid Executor handle on its own.
type sqlSession struct {
	engine *SQLEngine
	conn   Conn
}

func (s *sqlSession) Execute(ctx context.Context, query string, params map[string]any) (RowSource, error) {
	if s.conn == nil {
		conn, err := s.engine.Connect(ctx)
		if err != nil {
			return nil, err
		}
		s.conn = conn
	}
	return s.conn.Execute(ctx, query, params)
}

func (s *sqlSession) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close(ctx)
	s.conn = nil
	return err
}

func namedArgs(params map[string]any) []any {
	if len(params) == 0 {
		return nil
	}
	args := make([]any, 0, len(params))
	for name, value := range params {
		args = append(args, sql.Named(name, value))
	}
	return args
}

// sqlRows adapts *sql.Rows to the RowSource contract with dynamic scanning,
// so any SELECT works without a statically known schema.
type sqlRows struct {
	rows    *sql.Rows
	columns []string
}

func newSQLRows(rows *sql.Rows) (*sqlRows, error) {
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("driver: failed to read columns: %w", err)
	}
	return &sqlRows{rows: rows, columns: columns}, nil
}

func (r *sqlRows) Columns() []string {
	return r.columns
}

func (r *sqlRows) Fetch(ctx context.Context, n int) ([]frame.Record, error) {
	values := make([]any, len(r.columns))
	pointers := make([]any, len(r.columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	var batch []frame.Record
	for n <= 0 || len(batch) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.rows.Next() {
			break
		}
		if err := r.rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("driver: row scan failed: %w", err)
		}

		record := make(frame.Record, len(r.columns))
		for i, col := range r.columns {
			record[col] = normalizeValue(values[i])
		}
		batch = append(batch, record)
	}

	if err := r.rows.Err(); err != nil {
		return nil, fmt.Errorf("driver: rows iteration error: %w", err)
	}
	return batch, nil
}

func (r *sqlRows) Close(ctx context.Context) error {
	return r.rows.Close()
}

// normalizeValue maps driver byte buffers to strings; everything else is
// passed through as scanned.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
