package shared

import (
	"errors"
	"fmt"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"
	sf "github.com/snowflakedb/gosnowflake"
)

// ErrorKind classifies database errors so callers can decide how to react without matching text.
type ErrorKind int

const (
	KindOther       ErrorKind = iota
	KindCompilation           // the statement could not be compiled e.g. bad syntax or a missing table.
)

func (k ErrorKind) String() string {
	switch k {
	case KindCompilation:
		return "compilation"
	default:
		return "other"
	}
}

// SQL Server error numbers raised while compiling a statement.
var sqlServerCompilationErrors = map[int32]struct{}{
	102: {}, // incorrect syntax
	156: {}, // incorrect syntax near keyword
	207: {}, // invalid column name
	208: {}, // invalid object name
}

// QueryError is returned by Connector queries.
type QueryError struct {
	Kind  ErrorKind
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%v error during database query using SQL: '%v': %v", e.Kind, e.Query, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError wraps err, classifying it by inspecting the driver error types.
func NewQueryError(query string, err error) *QueryError {
	return &QueryError{Kind: ClassifyError(err), Query: query, Err: err}
}

// ClassifyError returns the kind of driver error found in the chain of err.
func ClassifyError(err error) ErrorKind {
	var sfErr *sf.SnowflakeError
	if errors.As(err, &sfErr) {
		if strings.HasPrefix(sfErr.SQLState, "42") { // if this is a syntax error or access rule violation...
			return KindCompilation
		}
		return KindOther
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		if _, ok := sqlServerCompilationErrors[msErr.Number]; ok {
			return KindCompilation
		}
	}
	return KindOther
}

// IsCompilationError reports whether err contains a QueryError of kind KindCompilation.
func IsCompilationError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.Kind == KindCompilation
}
