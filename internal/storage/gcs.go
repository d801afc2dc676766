package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"etcd-backup-agent/internal/config"
	"etcd-backup-agent/internal/errors"
)

// GCSStore implements ObjectStore against Google Cloud Storage
type GCSStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore creates a new GCS-backed object store
func NewGCSStore(ctx context.Context, cfg *config.StorageConfig) (*GCSStore, error) {
	var client *gcs.Client
	var err error

	if cfg.CredentialsFile != "" {
		client, err = gcs.NewClient(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	} else {
		client, err = gcs.NewClient(ctx)
	}
	if err != nil {
		return nil, errors.NewStorageError("failed to create GCS client", err)
	}

	return &GCSStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Put uploads a local file to remotePath with attached metadata
func (g *GCSStore) Put(ctx context.Context, localPath, remotePath string, metadata map[string]string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to open %s for upload", localPath), err)
	}
	defer f.Close()

	w := g.client.Bucket(g.bucket).Object(remotePath).NewWriter(ctx)
	if len(metadata) > 0 {
		w.Metadata = metadata
	}

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return errors.NewStorageError(fmt.Sprintf("failed to upload %s to gs://%s/%s", localPath, g.bucket, remotePath), err)
	}
	if err := w.Close(); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to finalize upload to gs://%s/%s", g.bucket, remotePath), err)
	}
	return nil
}

// HeadExists reports whether remotePath exists in the bucket
func (g *GCSStore) HeadExists(ctx context.Context, remotePath string) (bool, error) {
	_, err := g.client.Bucket(g.bucket).Object(remotePath).Attrs(ctx)
	if err == gcs.ErrObjectNotExist {
		return false, nil
	}
	if err != nil {
		return false, errors.NewStorageError(fmt.Sprintf("failed to head gs://%s/%s", g.bucket, remotePath), err)
	}
	return true, nil
}

// Get downloads remotePath into localPath
func (g *GCSStore) Get(ctx context.Context, remotePath, localPath string) error {
	r, err := g.client.Bucket(g.bucket).Object(remotePath).NewReader(ctx)
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to download gs://%s/%s", g.bucket, remotePath), err)
	}
	defer r.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to create %s", localPath), err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		os.Remove(localPath)
		return errors.NewStorageError(fmt.Sprintf("failed to write download to %s", localPath), err)
	}
	return out.Sync()
}

// ListModifiedSince returns objects under prefix modified after cutoff
func (g *GCSStore) ListModifiedSince(ctx context.Context, prefix string, cutoff time.Time) ([]ObjectInfo, error) {
	var objects []ObjectInfo

	it := g.client.Bucket(g.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.NewStorageError(fmt.Sprintf("failed to list gs://%s/%s", g.bucket, prefix), err)
		}
		if attrs.Updated.After(cutoff) {
			objects = append(objects, ObjectInfo{
				Key:          attrs.Name,
				Size:         attrs.Size,
				LastModified: attrs.Updated,
			})
		}
	}

	return objects, nil
}

// Tag attaches the tag set as object metadata. GCS has no separate
// tagging API, the metadata namespace serves both purposes.
func (g *GCSStore) Tag(ctx context.Context, remotePath string, tags map[string]string) error {
	_, err := g.client.Bucket(g.bucket).Object(remotePath).Update(ctx, gcs.ObjectAttrsToUpdate{
		Metadata: tags,
	})
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to tag gs://%s/%s", g.bucket, remotePath), err)
	}
	return nil
}
