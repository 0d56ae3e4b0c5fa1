package config

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// LoadConnectionParams reads a header-less two column CSV file of key,value pairs.
// Keys and values are trimmed. Later duplicates replace earlier ones.
func LoadConnectionParams(fileName string) (map[string]string, error) {
	rows, err := readCredentialsFile(fileName)
	if err != nil {
		return nil, err
	}
	params := make(map[string]string, len(rows))
	for idx, r := range rows {
		if len(r) < 2 {
			return nil, fmt.Errorf("credentials file %q: line %v must have a key and a value", fileName, idx+1)
		}
		k := strings.TrimSpace(r[0])
		if k == "" {
			return nil, fmt.Errorf("credentials file %q: line %v has an empty key", fileName, idx+1)
		}
		params[k] = strings.TrimSpace(r[1])
	}
	return params, nil
}

// LoadAPIKey returns the first cell of the first row of a header-less CSV file.
func LoadAPIKey(fileName string) (string, error) {
	rows, err := readCredentialsFile(fileName)
	if err != nil {
		return "", err
	}
	k := strings.TrimSpace(rows[0][0])
	if k == "" {
		return "", fmt.Errorf("API key file %q: first cell is empty", fileName)
	}
	return k, nil
}

// readCredentialsFile returns all non-blank rows of fileName.
// An empty file is an error.
func readCredentialsFile(fileName string) ([][]string, error) {
	fileName, err := expandPath(fileName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fileName)
	if os.IsNotExist(err) {
		return nil, FileNotFoundError{name: fileName}
	} else if err != nil {
		return nil, errors.Wrapf(err, "error opening credentials file %q", fileName)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows := make([][]string, 0)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrapf(err, "error reading credentials file %q", fileName)
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("credentials file %q is empty", fileName)
	}
	return rows, nil
}
