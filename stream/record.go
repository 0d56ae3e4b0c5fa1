package stream

import (
	"encoding/json"
	"fmt"

	om "github.com/cevaris/ordered_map"
	h "github.com/relloyd/freshpipe/helper"
	"github.com/relloyd/freshpipe/logger"
)

// NewRecord creates a new Record and returns it by value.
// The ordered map is a reference so copies of a Record share the same data.
func NewRecord() Record {
	return Record{
		data: om.NewOrderedMap(),
	}
}

// Record holds one flattened API record where keys are column names.
// Keys keep the order in which they were first set.
type Record struct {
	data *om.OrderedMap // raw data values, which can represent JSON null values as nil interfaces.
}

func (sr Record) SetData(name string, value interface{}) {
	sr.data.Set(name, value)
}

func (sr Record) GetData(name string) interface{} {
	val, ok := sr.data.Get(name)
	if !ok {
		panic(fmt.Sprintf("Invalid key name %q supplied while trying to fetch value from record: %v", name, sr.data))
	}
	return val
}

// Lookup returns the value for name and whether it exists in the record.
func (sr Record) Lookup(name string) (interface{}, bool) {
	return sr.data.Get(name)
}

// GetDataKeys returns the record keys in the order they were first set.
func (sr Record) GetDataKeys() []string {
	return h.OrderedMapKeysToStringSlice(sr.data)
}

// GetDataKeysAsStringSlice returns the values for keys as strings in the order of keys.
// Keys that are missing from the record produce empty strings, since API records are sparse.
func (sr Record) GetDataKeysAsStringSlice(log logger.Logger, keys []string) []string {
	retval := make([]string, len(keys))
	for idx, k := range keys {
		if v, ok := sr.data.Get(k); ok {
			retval[idx] = h.GetStringFromInterface(log, v)
		}
	}
	return retval
}

// GetJson marshals the record data to a JSON object.
func (sr Record) GetJson() ([]byte, error) {
	m := make(map[string]interface{}, sr.data.Len())
	iter := sr.data.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		m[kv.Key.(string)] = kv.Value
	}
	return json.Marshal(m)
}
