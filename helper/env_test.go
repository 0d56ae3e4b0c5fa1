package helper

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvVarName(t *testing.T) {
	got := GetEnvVarName("sink.sas-token")
	if got != "FP_SINK_SAS_TOKEN" {
		t.Fatalf("expected FP_SINK_SAS_TOKEN; got %q", got)
	}
}

func TestOverrideFromEnv(t *testing.T) {
	// Test 1, unset variables leave values alone.
	os.Unsetenv("FP_TEST_INT")
	i := 5
	if err := OverrideIntFromEnv("FP_TEST_INT", &i); err != nil || i != 5 {
		t.Fatalf("expected 5 and no error; got %v, %v", i, err)
	}
	// Test 2, set variables replace values.
	os.Setenv("FP_TEST_INT", "7")
	defer os.Unsetenv("FP_TEST_INT")
	if err := OverrideIntFromEnv("FP_TEST_INT", &i); err != nil || i != 7 {
		t.Fatalf("expected 7 and no error; got %v, %v", i, err)
	}
	// Test 3, bad values are errors.
	os.Setenv("FP_TEST_DURATION", "soon")
	defer os.Unsetenv("FP_TEST_DURATION")
	d := time.Second
	if err := OverrideDurationFromEnv("FP_TEST_DURATION", &d); err == nil {
		t.Fatal("expected error for bad duration")
	}
	// Test 4, strings with defaults.
	os.Unsetenv("FP_TEST_STRING")
	if v := ReadValueFromEnvWithDefault("FP_TEST_STRING", "dflt"); v != "dflt" {
		t.Fatalf("expected default value; got %q", v)
	}
}
