package table

import (
	"fmt"
	"strings"

	om "github.com/cevaris/ordered_map"
	"github.com/relloyd/freshpipe/stream"
)

// Flatten converts a decoded JSON object into a single record, joining nested object keys with sep.
// For example {"a": {"b": 1}} becomes {"a.b": 1}.
// Top level scalar keys keep their document order and are followed by the keys of nested objects.
// Below the top level, keys stay in document order with nested objects expanded in place.
// Arrays are left intact as a single value and empty nested objects produce no columns.
func Flatten(obj *om.OrderedMap, sep string) stream.Record {
	r := stream.NewRecord()
	nested := make([]*om.KVPair, 0)
	iter := obj.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		if _, isObj := kv.Value.(*om.OrderedMap); isObj {
			nested = append(nested, kv)
			continue
		}
		r.SetData(kv.Key.(string), plainValue(kv.Value))
	}
	for _, kv := range nested {
		flattenInto(r, kv.Key.(string), kv.Value.(*om.OrderedMap), sep)
	}
	return r
}

func flattenInto(r stream.Record, prefix string, obj *om.OrderedMap, sep string) {
	iter := obj.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		key := prefix + sep + kv.Key.(string)
		if child, isObj := kv.Value.(*om.OrderedMap); isObj { // if we need to go down another level...
			flattenInto(r, key, child, sep)
		} else {
			r.SetData(key, plainValue(kv.Value))
		}
	}
}

// plainValue converts ordered objects held inside arrays back to maps so they can be rendered as JSON.
func plainValue(v interface{}) interface{} {
	switch x := v.(type) {
	case *om.OrderedMap:
		m := make(map[string]interface{}, x.Len())
		iter := x.IterFunc()
		for kv, ok := iter(); ok; kv, ok = iter() {
			m[kv.Key.(string)] = plainValue(kv.Value)
		}
		return m
	case []interface{}:
		out := make([]interface{}, len(x))
		for i := range x {
			out[i] = plainValue(x[i])
		}
		return out
	default:
		return v
	}
}

// RecordsAtPath walks the decoded JSON document doc along the dotted recordPath and returns the array found there.
func RecordsAtPath(doc interface{}, recordPath string) ([]interface{}, error) {
	cur := doc
	if recordPath != "" {
		for _, p := range strings.Split(recordPath, ".") {
			obj, ok := cur.(*om.OrderedMap)
			if !ok {
				return nil, fmt.Errorf("record path %q: expected an object above key %q", recordPath, p)
			}
			cur, ok = obj.Get(p)
			if !ok {
				return nil, fmt.Errorf("record path %q: key %q not found in response", recordPath, p)
			}
		}
	}
	switch v := cur.(type) {
	case []interface{}:
		return v, nil
	case nil:
		return []interface{}{}, nil
	default:
		return nil, fmt.Errorf("record path %q: expected an array but found %T", recordPath, cur)
	}
}

// AppendJsonRecords flattens each JSON object in records and appends it to the table.
func (t *Table) AppendJsonRecords(records []interface{}, sep string) error {
	for idx, rec := range records {
		obj, ok := rec.(*om.OrderedMap)
		if !ok {
			return fmt.Errorf("record %v is not a JSON object (found %T)", idx, rec)
		}
		t.AppendRecord(Flatten(obj, sep))
	}
	return nil
}
