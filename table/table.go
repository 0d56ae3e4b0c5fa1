// Package table holds the tabular form of paginated API results: flattened records with an ordered set of columns.
package table

import (
	"encoding/csv"
	"io"
	"strings"

	om "github.com/cevaris/ordered_map"
	h "github.com/relloyd/freshpipe/helper"
	"github.com/relloyd/freshpipe/logger"
	"github.com/relloyd/freshpipe/stream"
)

// Table is an ordered sequence of flattened records.
// Column order is the order in which keys were first seen across all appended records.
type Table struct {
	log     logger.Logger
	columns *om.OrderedMap // column name -> column name
	rows    []stream.Record
}

func NewTable(log logger.Logger) *Table {
	return &Table{
		log:     log,
		columns: om.NewOrderedMap(),
		rows:    make([]stream.Record, 0),
	}
}

// AppendRecord adds r to the table and registers any new columns found in it, in record key order.
func (t *Table) AppendRecord(r stream.Record) {
	for _, k := range r.GetDataKeys() {
		if _, ok := t.columns.Get(k); !ok {
			t.columns.Set(k, k)
		}
	}
	t.rows = append(t.rows, r)
}

// AppendTable concatenates the rows of other onto t.
func (t *Table) AppendTable(other *Table) {
	iter := other.columns.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		if _, exists := t.columns.Get(kv.Key); !exists {
			t.columns.Set(kv.Key, kv.Value)
		}
	}
	t.rows = append(t.rows, other.rows...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return h.OrderedMapKeysToStringSlice(t.columns)
}

// Rows returns the records held by the table.
func (t *Table) Rows() []stream.Record {
	return t.rows
}

// RenameColumns applies fn to every column name in every row.
// When two columns map to the same new name, the column that appears later in the column order wins
// and the surviving column keeps the position of the first.
func (t *Table) RenameColumns(fn func(string) string) {
	oldCols := t.Columns()
	newCols := om.NewOrderedMap()
	for _, c := range oldCols {
		n := fn(c)
		if _, ok := newCols.Get(n); !ok {
			newCols.Set(n, n)
		}
	}
	for idx, r := range t.rows {
		nr := stream.NewRecord()
		for _, c := range oldCols {
			if v, ok := r.Lookup(c); ok {
				nr.SetData(fn(c), v)
			}
		}
		t.rows[idx] = nr
	}
	t.columns = newCols
}

// UpperCaseColumns converts all column names to upper case.
func (t *Table) UpperCaseColumns() {
	t.RenameColumns(strings.ToUpper)
}

// StripColumnPrefix removes prefix from the start of any column names that have it.
// Other columns are unchanged. Repeated prefixes are all removed so applying this twice changes nothing.
// It returns the number of columns renamed.
func (t *Table) StripColumnPrefix(prefix string) int {
	if prefix == "" {
		return 0
	}
	count := 0
	for _, c := range t.Columns() {
		if strings.HasPrefix(c, prefix) {
			count++
		}
	}
	if count == 0 {
		return 0
	}
	t.RenameColumns(func(c string) string {
		for strings.HasPrefix(c, prefix) {
			c = strings.TrimPrefix(c, prefix)
		}
		return c
	})
	t.log.Debug("renamed ", count, " columns with prefix ", prefix)
	return count
}

// WriteCSV writes a header row followed by one line per row, without any index column.
// A table without columns produces no output.
func (t *Table) WriteCSV(w io.Writer) error {
	cols := t.Columns()
	if len(cols) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	for _, r := range t.rows {
		if err := cw.Write(r.GetDataKeysAsStringSlice(t.log, cols)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
