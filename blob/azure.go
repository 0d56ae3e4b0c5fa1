package blob

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/Azure/azure-pipeline-go/pipeline"
	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/pkg/errors"
	"github.com/relloyd/freshpipe/constants"
)

type azurePutter struct {
	container azblob.ContainerURL
	prefix    string
}

// NewAzurePutter writes block blobs to https://{account}.blob.core.windows.net/{container} authenticating
// with the shared access signature in sasToken.
func NewAzurePutter(account, container, sasToken, prefix string) (Putter, error) {
	u, err := url.Parse(fmt.Sprintf("https://%v.blob.core.windows.net/%v", account, container))
	if err != nil {
		return nil, errors.Wrap(err, "error building Azure container URL")
	}
	u.RawQuery = strings.TrimPrefix(sasToken, "?")
	p := azblob.NewPipeline(azblob.NewAnonymousCredential(), azblob.PipelineOptions{})
	return NewAzurePutterWithPipeline(*u, p, prefix), nil
}

// NewAzurePutterWithPipeline writes to the container at containerURL, which may carry a SAS in its query.
func NewAzurePutterWithPipeline(containerURL url.URL, p pipeline.Pipeline, prefix string) Putter {
	return &azurePutter{
		container: azblob.NewContainerURL(containerURL, p),
		prefix:    prefix,
	}
}

func (a *azurePutter) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	name := key
	if a.prefix != "" {
		name = path.Join(a.prefix, key)
	}
	blobURL := a.container.NewBlockBlobURL(name)
	_, err := azblob.UploadBufferToBlockBlob(ctx, data, blobURL, azblob.UploadToBlockBlobOptions{
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{ContentType: constants.ContentTypeCsv},
		Metadata:        azblob.Metadata(metadata),
	})
	if err != nil {
		var se azblob.StorageError
		if errors.As(err, &se) {
			return fmt.Errorf("azure blob upload of %q failed with %v: %w", name, se.ServiceCode(), err)
		}
		return errors.Wrapf(err, "azure blob upload of %q failed", name)
	}
	return nil
}
