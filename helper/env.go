package helper

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/relloyd/freshpipe/constants"
)

// GetEnvVarName converts name into an environment variable using EnvVarPrefix and the name converted to upper
// with dashes and dots converted to underscores all separated by underscores.
// e.g. "sink.sas-token" becomes FP_SINK_SAS_TOKEN.
func GetEnvVarName(name string) string {
	n := strings.TrimSpace(strings.ToUpper(name))
	n = strings.NewReplacer("-", "_", ".", "_").Replace(n)
	return fmt.Sprintf("%v_%v", constants.EnvVarPrefix, n)
}

// ReadValueFromEnv will read the env var and populate the supplied val.
// If the env var is not set then return an error.
func ReadValueFromEnv(name string, val *string) error {
	v := os.Getenv(name)
	if v != "" { // if the environment variable was set...
		*val = v // update the callers value
		return nil
	}
	return fmt.Errorf("value for environment variable %v not found", name)
}

// ReadValueFromEnvWithDefault will read the value of name from the environment into v.
// If it's not set then it will apply the supplied defaultValue and return v.
func ReadValueFromEnvWithDefault(name string, defaultValue string) (v string) {
	_ = ReadValueFromEnv(name, &v)
	if v == "" && defaultValue != "" { // if the environment variable is not set and we have been given a default value...
		v = defaultValue
	}
	return
}

// OverrideStringFromEnv replaces *val with the value of env var name if it is set.
func OverrideStringFromEnv(name string, val *string) {
	_ = ReadValueFromEnv(name, val)
}

// OverrideIntFromEnv replaces *val with the integer value of env var name if it is set.
// An error is returned if the variable is set but is not an integer.
func OverrideIntFromEnv(name string, val *int) error {
	var s string
	if ReadValueFromEnv(name, &s) != nil {
		return nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("environment variable %v must be an integer: %w", name, err)
	}
	*val = i
	return nil
}

// OverrideBoolFromEnv replaces *val with the boolean value of env var name if it is set.
func OverrideBoolFromEnv(name string, val *bool) error {
	var s string
	if ReadValueFromEnv(name, &s) != nil {
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("environment variable %v must be true or false: %w", name, err)
	}
	*val = b
	return nil
}

// OverrideDurationFromEnv replaces *val with the duration value (e.g. "90s") of env var name if it is set.
func OverrideDurationFromEnv(name string, val *time.Duration) error {
	var s string
	if ReadValueFromEnv(name, &s) != nil {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("environment variable %v must be a duration: %w", name, err)
	}
	*val = d
	return nil
}
