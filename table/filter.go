package table

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/diegoholiveira/jsonlogic"
	"github.com/relloyd/freshpipe/stream"
)

// ValidateFilter returns an error if rule is not valid JSON Logic.
func ValidateFilter(rule string) error {
	if !jsonlogic.IsValid(strings.NewReader(rule)) {
		return fmt.Errorf("invalid JSON Logic rule: %v", rule)
	}
	return nil
}

// Filter keeps only the rows for which the JSON Logic rule evaluates to true.
// The rule sees each row as a JSON object keyed by the current column names.
// It returns the number of rows dropped.
func (t *Table) Filter(rule string) (int, error) {
	if err := ValidateFilter(rule); err != nil {
		return 0, err
	}
	var result bytes.Buffer
	kept := make([]stream.Record, 0, len(t.rows))
	for _, r := range t.rows {
		result.Reset()
		if err := applyJsonLogic(r, rule, &result); err != nil {
			return 0, err
		}
		if strings.TrimSpace(result.String()) == "true" {
			kept = append(kept, r)
		}
	}
	dropped := len(t.rows) - len(kept)
	t.rows = kept
	return dropped, nil
}

// applyJsonLogic will apply json logic supplied in rule to data.
// It assumes the caller has validated the logic already!
func applyJsonLogic(data stream.Record, rule string, result *bytes.Buffer) error {
	jsonData, err := data.GetJson()
	if err != nil {
		return fmt.Errorf("error marshalling data before applying JSON logic: %v", err)
	}
	err = jsonlogic.Apply(strings.NewReader(rule), bytes.NewReader(jsonData), result)
	if err != nil {
		return fmt.Errorf("error applying JSON logic: %v", err)
	}
	return nil
}
