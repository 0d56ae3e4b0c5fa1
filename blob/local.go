package blob

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type localPutter struct {
	dir string
}

// NewLocalPutter writes objects as files below dir. Metadata is not stored.
func NewLocalPutter(dir string) Putter {
	return &localPutter{dir: dir}
}

// Put writes to a temporary file first and renames it over key so readers never see half a file.
func (l *localPutter) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
		return errors.Wrapf(err, "error creating directory for %q", fn)
	}
	f, err := ioutil.TempFile(filepath.Dir(fn), "."+filepath.Base(fn)+".*")
	if err != nil {
		return errors.Wrapf(err, "error creating temp file for %q", fn)
	}
	tmp := f.Name()
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "error writing %q", fn)
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "error closing %q", fn)
	}
	if err = os.Rename(tmp, fn); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "error replacing %q", fn)
	}
	return nil
}
