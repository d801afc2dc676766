package kms

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	awskms "github.com/aws/aws-sdk-go/service/kms"

	"etcd-backup-agent/internal/errors"
)

// DataKey is a freshly generated data-encryption key: the plaintext
// form for local use and the provider-wrapped form for the envelope.
type DataKey struct {
	Plaintext []byte
	Wrapped   []byte
}

// Zero overwrites the plaintext key material. Callers release the key
// as soon as the cipher has consumed it.
func (k *DataKey) Zero() {
	for i := range k.Plaintext {
		k.Plaintext[i] = 0
	}
}

// KeyService abstracts the key-management provider
type KeyService interface {
	// GenerateDataKey requests one fresh 256-bit data key wrapped by
	// the master key identified by keyID.
	GenerateDataKey(ctx context.Context, keyID string) (*DataKey, error)

	// Unwrap decrypts a wrapped data key back to plaintext.
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)
}

// kmsAPI is the subset of the AWS KMS client the service uses
type kmsAPI interface {
	GenerateDataKeyWithContext(aws.Context, *awskms.GenerateDataKeyInput, ...request.Option) (*awskms.GenerateDataKeyOutput, error)
	DecryptWithContext(aws.Context, *awskms.DecryptInput, ...request.Option) (*awskms.DecryptOutput, error)
}

// AWSKeyService implements KeyService against AWS KMS
type AWSKeyService struct {
	client kmsAPI
}

// NewAWSKeyService creates a key service bound to the given region
func NewAWSKeyService(region string) (*AWSKeyService, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, errors.NewKMSError("failed to create AWS session", err)
	}
	return &AWSKeyService{client: awskms.New(sess)}, nil
}

// GenerateDataKey requests a fresh AES-256 data key from KMS
func (s *AWSKeyService) GenerateDataKey(ctx context.Context, keyID string) (*DataKey, error) {
	out, err := s.client.GenerateDataKeyWithContext(ctx, &awskms.GenerateDataKeyInput{
		KeyId:   aws.String(keyID),
		KeySpec: aws.String(awskms.DataKeySpecAes256),
	})
	if err != nil {
		return nil, errors.NewKMSError("failed to generate data key", err)
	}
	return &DataKey{
		Plaintext: out.Plaintext,
		Wrapped:   out.CiphertextBlob,
	}, nil
}

// Unwrap decrypts a wrapped data key via KMS
func (s *AWSKeyService) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	out, err := s.client.DecryptWithContext(ctx, &awskms.DecryptInput{
		CiphertextBlob: wrapped,
	})
	if err != nil {
		return nil, errors.NewKMSError("failed to unwrap data key", err)
	}
	return out.Plaintext, nil
}
