package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"etcd-backup-agent/internal/config"
	"etcd-backup-agent/internal/errors"
)

// AzureStore implements ObjectStore against Azure Blob Storage
type AzureStore struct {
	container azblob.ContainerURL
}

// NewAzureStore creates a new Azure-backed object store
func NewAzureStore(cfg *config.StorageConfig) (*AzureStore, error) {
	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, errors.NewStorageError("failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName))
	if err != nil {
		return nil, errors.NewStorageError("failed to parse Azure service URL", err)
	}

	return &AzureStore{
		container: azblob.NewServiceURL(*serviceURL, pipeline).NewContainerURL(cfg.Container),
	}, nil
}

// Put uploads a local file to remotePath with attached metadata
func (a *AzureStore) Put(ctx context.Context, localPath, remotePath string, metadata map[string]string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to open %s for upload", localPath), err)
	}
	defer f.Close()

	blobURL := a.container.NewBlockBlobURL(remotePath)
	_, err = azblob.UploadFileToBlockBlob(ctx, f, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
		Metadata:    azureMetadata(metadata),
	})
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to upload %s to azure blob %s", localPath, remotePath), err)
	}
	return nil
}

// HeadExists reports whether remotePath exists in the container
func (a *AzureStore) HeadExists(ctx context.Context, remotePath string) (bool, error) {
	blobURL := a.container.NewBlockBlobURL(remotePath)
	_, err := blobURL.GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if stgErr, ok := err.(azblob.StorageError); ok && stgErr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
			return false, nil
		}
		return false, errors.NewStorageError(fmt.Sprintf("failed to head azure blob %s", remotePath), err)
	}
	return true, nil
}

// Get downloads remotePath into localPath
func (a *AzureStore) Get(ctx context.Context, remotePath, localPath string) error {
	out, err := os.Create(localPath)
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to create %s", localPath), err)
	}
	defer out.Close()

	blobURL := a.container.NewBlockBlobURL(remotePath)
	err = azblob.DownloadBlobToFile(ctx, blobURL.BlobURL, 0, azblob.CountToEnd, out, azblob.DownloadFromBlobOptions{})
	if err != nil {
		os.Remove(localPath)
		return errors.NewStorageError(fmt.Sprintf("failed to download azure blob %s", remotePath), err)
	}
	return nil
}

// ListModifiedSince returns blobs under prefix modified after cutoff
func (a *AzureStore) ListModifiedSince(ctx context.Context, prefix string, cutoff time.Time) ([]ObjectInfo, error) {
	var objects []ObjectInfo

	for marker := (azblob.Marker{}); marker.NotDone(); {
		resp, err := a.container.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: prefix,
		})
		if err != nil {
			return nil, errors.NewStorageError(fmt.Sprintf("failed to list azure blobs under %s", prefix), err)
		}
		marker = resp.NextMarker

		for _, blob := range resp.Segment.BlobItems {
			if blob.Properties.LastModified.After(cutoff) {
				size := int64(0)
				if blob.Properties.ContentLength != nil {
					size = *blob.Properties.ContentLength
				}
				objects = append(objects, ObjectInfo{
					Key:          blob.Name,
					Size:         size,
					LastModified: blob.Properties.LastModified,
				})
			}
		}
	}

	return objects, nil
}

// Tag attaches the tag set as blob metadata
func (a *AzureStore) Tag(ctx context.Context, remotePath string, tags map[string]string) error {
	blobURL := a.container.NewBlockBlobURL(remotePath)
	_, err := blobURL.SetMetadata(ctx, azureMetadata(tags), azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to tag azure blob %s", remotePath), err)
	}
	return nil
}

// azureMetadata converts the generic metadata map into the azblob
// form, replacing hyphens since blob metadata keys must be valid
// identifiers.
func azureMetadata(metadata map[string]string) azblob.Metadata {
	if len(metadata) == 0 {
		return nil
	}
	out := make(azblob.Metadata, len(metadata))
	for k, v := range metadata {
		key := make([]byte, len(k))
		for i := 0; i < len(k); i++ {
			if k[i] == '-' {
				key[i] = '_'
			} else {
				key[i] = k[i]
			}
		}
		out[string(key)] = v
	}
	return out
}
