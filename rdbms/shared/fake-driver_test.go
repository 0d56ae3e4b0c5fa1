package shared

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
)

// fakeResult is the canned answer for one query text.
type fakeResult struct {
	cols []string
	rows [][]driver.Value
	err  error
}

var (
	fakeResultsMu sync.Mutex
	fakeResults   = map[string]fakeResult{}
)

func init() {
	sql.Register("fakesql", fakeDriver{})
}

func setFakeResult(query string, r fakeResult) {
	fakeResultsMu.Lock()
	defer fakeResultsMu.Unlock()
	fakeResults[query] = r
}

type fakeDriver struct{}

func (fakeDriver) Open(name string) (driver.Conn, error) { return &fakeConn{}, nil }

type fakeConn struct{}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) { return &fakeStmt{query: query}, nil }
func (c *fakeConn) Close() error                              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error)                 { return nil, errors.New("transactions not supported") }

type fakeStmt struct {
	query string
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }
func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, errors.New("exec not supported")
}
func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	fakeResultsMu.Lock()
	r, ok := fakeResults[s.query]
	fakeResultsMu.Unlock()
	if !ok {
		return nil, errors.New("unexpected query: " + s.query)
	}
	if r.err != nil {
		return nil, r.err
	}
	return &fakeRows{cols: r.cols, rows: r.rows}, nil
}

type fakeRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }
func (r *fakeRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
