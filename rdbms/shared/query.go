package shared

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SqlQuery runs sqltext and feeds the header and then each row to i.
// Driver errors are returned as *QueryError.
func SqlQuery(ctx context.Context, db Connector, sqltext string, i SqlResultHandler) error {
	rows, err := db.QueryContext(ctx, sqltext)
	if err != nil {
		return NewQueryError(sqltext, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	cols, err := rows.Columns()
	if err != nil {
		return NewQueryError(sqltext, err)
	}
	// Scan the values dynamically.
	scanPtrs := make([]interface{}, len(cols))
	scanVals := make([]interface{}, len(cols))
	for idx := range cols { // for each column...
		scanPtrs[idx] = &scanVals[idx]
	}
	// Build and send the header.
	header := make([]interface{}, len(cols))
	for idx := range cols {
		header[idx] = cols[idx]
	}
	if err = i.HandleHeader(header); err != nil {
		return err
	}
	// Send the rows via callback interface.
	for rows.Next() {
		if err = ctx.Err(); err != nil { // quit if asked to...
			return err
		}
		if err = rows.Scan(scanPtrs...); err != nil {
			return NewQueryError(sqltext, fmt.Errorf("error scanning row: %w", err))
		}
		row := make([]interface{}, len(scanVals))
		copy(row, scanVals)
		if err = i.HandleRow(row); err != nil {
			return err
		}
	}
	if err = rows.Err(); err != nil {
		return NewQueryError(sqltext, err)
	}
	return nil
}

var errScalarDone = errors.New("scalar value found")

// scalarHandler keeps the first column of the first row.
type scalarHandler struct {
	value interface{}
	found bool
}

func (h *scalarHandler) HandleHeader(i []interface{}) error {
	if len(i) == 0 {
		return errors.New("query returned no columns")
	}
	return nil
}

func (h *scalarHandler) HandleRow(i []interface{}) error {
	h.value = i[0]
	h.found = true
	return errScalarDone
}

// QueryScalar returns the first column of the first row produced by sqltext.
// A query that returns no rows yields sql.ErrNoRows.
func QueryScalar(ctx context.Context, db Connector, sqltext string) (interface{}, error) {
	h := &scalarHandler{}
	err := SqlQuery(ctx, db, sqltext, h)
	if err != nil && !errors.Is(err, errScalarDone) {
		return nil, err
	}
	if !h.found {
		return nil, sql.ErrNoRows
	}
	return h.value, nil
}
