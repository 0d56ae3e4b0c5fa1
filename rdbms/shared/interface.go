package shared

import (
	"context"
	"database/sql"
)

// Connector abstracts the Go SQL functionality used to read the watermark.
type Connector interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryScalar(ctx context.Context, query string) (interface{}, error)
	Close() error
	GetType() string
}

// SqlResultHandler receives the header and then each row of a query result.
type SqlResultHandler interface {
	HandleHeader(i []interface{}) error
	HandleRow(i []interface{}) error
}
