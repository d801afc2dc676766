package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"etcd-backup-agent/internal/config"
	"etcd-backup-agent/internal/errors"
)

// S3Store implements ObjectStore against Amazon S3
type S3Store struct {
	client s3API
	bucket string
}

// s3API is the subset of the S3 client the store uses
type s3API interface {
	PutObjectWithContext(aws.Context, *s3.PutObjectInput, ...request.Option) (*s3.PutObjectOutput, error)
	HeadObjectWithContext(aws.Context, *s3.HeadObjectInput, ...request.Option) (*s3.HeadObjectOutput, error)
	GetObjectWithContext(aws.Context, *s3.GetObjectInput, ...request.Option) (*s3.GetObjectOutput, error)
	ListObjectsV2PagesWithContext(aws.Context, *s3.ListObjectsV2Input, func(*s3.ListObjectsV2Output, bool) bool, ...request.Option) error
	PutObjectTaggingWithContext(aws.Context, *s3.PutObjectTaggingInput, ...request.Option) (*s3.PutObjectTaggingOutput, error)
}

// NewS3Store creates a new S3-backed object store
func NewS3Store(cfg *config.StorageConfig) (*S3Store, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.AccessKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.NewStorageError("failed to create AWS session", err)
	}

	return &S3Store{
		client: s3.New(sess),
		bucket: cfg.Bucket,
	}, nil
}

// Put uploads a local file to remotePath with attached metadata
func (s *S3Store) Put(ctx context.Context, localPath, remotePath string, metadata map[string]string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to open %s for upload", localPath), err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(remotePath),
		Body:   f,
	}
	if len(metadata) > 0 {
		input.Metadata = make(map[string]*string, len(metadata))
		for k, v := range metadata {
			input.Metadata[k] = aws.String(v)
		}
	}

	if _, err := s.client.PutObjectWithContext(ctx, input); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to upload %s to s3://%s/%s", localPath, s.bucket, remotePath), err)
	}
	return nil
}

// HeadExists reports whether remotePath exists in the bucket
func (s *S3Store) HeadExists(ctx context.Context, remotePath string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(remotePath),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			switch aerr.Code() {
			case "NotFound", s3.ErrCodeNoSuchKey:
				return false, nil
			}
		}
		return false, errors.NewStorageError(fmt.Sprintf("failed to head s3://%s/%s", s.bucket, remotePath), err)
	}
	return true, nil
}

// Get downloads remotePath into localPath
func (s *S3Store) Get(ctx context.Context, remotePath, localPath string) error {
	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(remotePath),
	})
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to download s3://%s/%s", s.bucket, remotePath), err)
	}
	defer result.Body.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to create %s", localPath), err)
	}
	defer out.Close()

	if _, err := io.Copy(out, result.Body); err != nil {
		os.Remove(localPath)
		return errors.NewStorageError(fmt.Sprintf("failed to write download to %s", localPath), err)
	}
	return out.Sync()
}

// ListModifiedSince returns objects under prefix modified after cutoff
func (s *S3Store) ListModifiedSince(ctx context.Context, prefix string, cutoff time.Time) ([]ObjectInfo, error) {
	var objects []ObjectInfo

	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			if obj.LastModified != nil && obj.LastModified.After(cutoff) {
				objects = append(objects, ObjectInfo{
					Key:          aws.StringValue(obj.Key),
					Size:         aws.Int64Value(obj.Size),
					LastModified: aws.TimeValue(obj.LastModified),
				})
			}
		}
		return true
	})
	if err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("failed to list s3://%s/%s", s.bucket, prefix), err)
	}

	return objects, nil
}

// Tag attaches a tag set to an existing object
func (s *S3Store) Tag(ctx context.Context, remotePath string, tags map[string]string) error {
	tagSet := make([]*s3.Tag, 0, len(tags))
	for k, v := range tags {
		tagSet = append(tagSet, &s3.Tag{Key: aws.String(k), Value: aws.String(v)})
	}

	_, err := s.client.PutObjectTaggingWithContext(ctx, &s3.PutObjectTaggingInput{
		Bucket:  aws.String(s.bucket),
		Key:     aws.String(remotePath),
		Tagging: &s3.Tagging{TagSet: tagSet},
	})
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to tag s3://%s/%s", s.bucket, remotePath), err)
	}
	return nil
}
