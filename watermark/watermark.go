// Package watermark reads the latest ticket change time from the warehouse and converts it into the
// updated_since value used for incremental Freshservice fetches.
package watermark

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/relloyd/freshpipe/constants"
	"github.com/relloyd/freshpipe/logger"
	"github.com/relloyd/freshpipe/rdbms/shared"
)

var reWarehouseTimestamp = regexp.MustCompile(constants.TimeFormatWatermarkRegex)

// Querier runs a query that returns a single value.
type Querier interface {
	QueryScalar(ctx context.Context, query string) (interface{}, error)
	GetType() string
}

// Reader builds and runs the watermark query for one warehouse table.
type Reader struct {
	Log           logger.Logger
	Table         string
	UpdatedColumn string
	CreatedColumn string
	Default       string
}

// NewReader returns a Reader for the standard TICKETS table.
func NewReader(log logger.Logger) *Reader {
	return &Reader{
		Log:           log,
		Table:         constants.DefaultWatermarkTable,
		UpdatedColumn: constants.DefaultWatermarkUpdatedCol,
		CreatedColumn: constants.DefaultWatermarkCreatedCol,
		Default:       constants.DefaultWatermark,
	}
}

// Sql returns the query Read would run against a warehouse of type dbType.
func (r *Reader) Sql(dbType string) string {
	c := shared.ConnectionDetails{Type: dbType}
	return c.MustGetWatermarkSql(r.Table, r.UpdatedColumn, r.CreatedColumn, r.Default)
}

// Read executes exactly one aggregate query via q and returns the formatted watermark.
// Query errors keep their *shared.QueryError type so callers can use IsSoft.
func (r *Reader) Read(ctx context.Context, q Querier) (string, error) {
	var query string
	switch q.GetType() {
	case constants.ConnectionTypeSnowflake, constants.ConnectionTypeSqlServer:
		query = r.Sql(q.GetType())
	default:
		return "", fmt.Errorf("unsupported warehouse type %q for watermark query", q.GetType())
	}
	r.Log.Debug("watermark query: ", query)
	v, err := q.QueryScalar(ctx, query)
	if err != nil {
		return "", errors.Wrap(err, "error reading watermark")
	}
	w, err := Format(v, r.Default)
	if err != nil {
		return "", err
	}
	r.Log.Info("Watermark read from ", r.Table, ": ", w)
	return w, nil
}

// Format converts the raw aggregate value into an ISO-8601 UTC string.
// NULL or empty values yield defaultValue unchanged.
func Format(v interface{}, defaultValue string) (string, error) {
	var s string
	switch x := v.(type) {
	case nil:
		return defaultValue, nil
	case time.Time:
		s = x.Format(constants.TimeFormatWatermark)
	case []byte:
		s = string(x)
	case string:
		s = x
	default:
		return "", fmt.Errorf("unexpected watermark value of type %T: %v", v, v)
	}
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return defaultValue, nil
	case strings.HasSuffix(s, "Z"):
		return s, nil
	case reWarehouseTimestamp.MatchString(s):
		return strings.Replace(s, " ", "T", 1) + "Z", nil
	default:
		return "", fmt.Errorf("unexpected watermark format %q", s)
	}
}

// IsSoft reports whether err should end a run quietly rather than fail it.
// Only statement compilation errors qualify e.g. when the warehouse table does not exist yet.
func IsSoft(err error) bool {
	return shared.IsCompilationError(err)
}
