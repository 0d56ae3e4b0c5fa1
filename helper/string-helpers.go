package helper

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/relloyd/freshpipe/logger"
)

// OrderedMapKeysToStringSlice returns the keys of om in insertion order.
// All keys are expected to be of type string.
func OrderedMapKeysToStringSlice(o *om.OrderedMap) []string {
	retval := make([]string, 0, o.Len())
	iter := o.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		retval = append(retval, kv.Key.(string))
	}
	return retval
}

// Convert a string of the form, 'f1,f2,f3...' into a slice of string values.
// 1) Split on comma.
// 2) Remove leading and trailing spaces.
// Empty tokens are dropped.
func CsvToStringSliceTrimSpaces(s string) []string {
	tokens := strings.Split(s, ",")
	retval := make([]string, 0, len(tokens))
	for x := range tokens {
		t := strings.TrimSpace(tokens[x])
		if t != "" {
			retval = append(retval, t)
		}
	}
	return retval
}

// GetStringFromInterface will convert interface{} value to a string suitable for a CSV cell.
// JSON objects and arrays are rendered as compact JSON, times as RFC3339 in UTC and nil as an empty string.
func GetStringFromInterface(log logger.Logger, input interface{}) (retval string) {
	switch v := input.(type) {
	case int, int16, int32, int64, int8, uint8:
		retval = fmt.Sprintf("%d", v)
	case string:
		retval = v
	case json.Number:
		retval = v.String()
	case float32:
		retval = strconv.FormatFloat(float64(v), 'f', -1, 32) // use 'f' to convert float to string without an exponent i.e. preserve all decimal points.
	case float64:
		retval = strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		retval = v.UTC().Format(time.RFC3339)
	case []uint8:
		retval = string(v)
	case bool:
		retval = strconv.FormatBool(v)
	case nil:
		retval = ""
	case []interface{}, map[string]interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			log.Panic("unable to marshal nested value to JSON: ", err)
		}
		retval = string(b)
	default:
		log.Panic("unhandled type while fetching string from interface: type = ", reflect.TypeOf(input), "; value = ", input)
	}
	return
}
