package config

import (
	"path"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// getConfigHomeDir returns the full path to the directory that stores the default config file.
func getConfigHomeDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "error finding home directory")
	}
	return path.Join(home, MainDir), nil
}

// expandPath resolves a leading ~ in p.
func expandPath(p string) (string, error) {
	x, err := homedir.Expand(p)
	if err != nil {
		return "", errors.Wrapf(err, "error expanding path %q", p)
	}
	return x, nil
}
