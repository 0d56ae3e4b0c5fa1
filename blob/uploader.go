package blob

import (
	"bytes"
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/relloyd/freshpipe/constants"
	"github.com/relloyd/freshpipe/logger"
	"github.com/relloyd/freshpipe/table"
)

// Uploader serialises tables to CSV and stores them via a Putter.
type Uploader struct {
	log    logger.Logger
	putter Putter
}

func NewUploader(log logger.Logger, p Putter) *Uploader {
	return &Uploader{log: log, putter: p}
}

// Upload writes t as CSV to key, replacing any existing object.
// The row count is added to metadata under BlobMetadataRows.
func (u *Uploader) Upload(ctx context.Context, t *table.Table, key string, metadata map[string]string) error {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return errors.Wrapf(err, "error writing CSV for %q", key)
	}
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[constants.BlobMetadataRows] = strconv.Itoa(t.Len())
	u.log.Debug("uploading ", buf.Len(), " bytes to ", key)
	if err := u.putter.Put(ctx, key, buf.Bytes(), meta); err != nil {
		return errors.Wrapf(err, "error uploading %q", key)
	}
	u.log.Info("Uploaded ", t.Len(), " rows to ", key)
	return nil
}
