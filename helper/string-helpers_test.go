package helper

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/relloyd/freshpipe/logger"
)

func TestGetStringFromInterface(t *testing.T) {
	log := logger.NewLogger("freshpipe", "info", true)
	cases := []struct {
		input    interface{}
		expected string
	}{
		{nil, ""},
		{"abc", "abc"},
		{json.Number("12345678901234567890"), "12345678901234567890"},
		{float64(1.5), "1.5"},
		{float64(1e21), "1000000000000000000000"},
		{true, "true"},
		{int64(42), "42"},
		{[]byte("raw"), "raw"},
		{time.Date(2023, 8, 25, 10, 11, 12, 0, time.UTC), "2023-08-25T10:11:12Z"},
		{[]interface{}{"a", json.Number("1")}, `["a",1]`},
		{map[string]interface{}{"k": "v"}, `{"k":"v"}`},
	}
	for idx, c := range cases {
		got := GetStringFromInterface(log, c.input)
		if got != c.expected {
			t.Fatalf("case %v: expected %q; got %q", idx, c.expected, got)
		}
	}
}

func TestCsvToStringSliceTrimSpaces(t *testing.T) {
	got := CsvToStringSliceTrimSpaces(" tickets, groups ,,ticket_fields ")
	expected := []string{"tickets", "groups", "ticket_fields"}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v; got %v", expected, got)
	}
	if len(CsvToStringSliceTrimSpaces("")) != 0 {
		t.Fatal("expected empty slice for empty input")
	}
}

func TestOrderedMapKeysToStringSlice(t *testing.T) {
	// Test 1, confirm insertion order is preserved.
	input := []string{"Z", "A", "M"}
	m := om.NewOrderedMap()
	for _, v := range input {
		m.Set(v, v)
	}
	got := OrderedMapKeysToStringSlice(m)
	if !reflect.DeepEqual(got, input) {
		t.Fatalf("expected %v; got %v", input, got)
	}
	// Test 2, confirm empty ordered map produces empty slice.
	if len(OrderedMapKeysToStringSlice(om.NewOrderedMap())) != 0 {
		t.Fatal("expected empty slice but got something")
	}
}
