package kms

import (
	"context"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	awskms "github.com/aws/aws-sdk-go/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKMS wraps keys by XOR with a fixed pad so Unwrap can invert it
type fakeKMS struct {
	generateErr error
	decryptErr  error
	calls       int
}

const xorPad = 0x5a

func (f *fakeKMS) GenerateDataKeyWithContext(_ aws.Context, input *awskms.GenerateDataKeyInput, _ ...request.Option) (*awskms.GenerateDataKeyOutput, error) {
	f.calls++
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	plaintext := make([]byte, 32)
	if _, err := rand.Read(plaintext); err != nil {
		return nil, err
	}
	wrapped := make([]byte, len(plaintext))
	for i, b := range plaintext {
		wrapped[i] = b ^ xorPad
	}
	return &awskms.GenerateDataKeyOutput{
		KeyId:          input.KeyId,
		Plaintext:      plaintext,
		CiphertextBlob: wrapped,
	}, nil
}

func (f *fakeKMS) DecryptWithContext(_ aws.Context, input *awskms.DecryptInput, _ ...request.Option) (*awskms.DecryptOutput, error) {
	f.calls++
	if f.decryptErr != nil {
		return nil, f.decryptErr
	}
	plaintext := make([]byte, len(input.CiphertextBlob))
	for i, b := range input.CiphertextBlob {
		plaintext[i] = b ^ xorPad
	}
	return &awskms.DecryptOutput{Plaintext: plaintext}, nil
}

func TestGenerateDataKeyAndUnwrap(t *testing.T) {
	fake := &fakeKMS{}
	svc := &AWSKeyService{client: fake}

	key, err := svc.GenerateDataKey(context.Background(), "alias/backup")
	require.NoError(t, err)
	require.Len(t, key.Plaintext, 32)
	assert.NotEqual(t, key.Plaintext, key.Wrapped)

	unwrapped, err := svc.Unwrap(context.Background(), key.Wrapped)
	require.NoError(t, err)
	assert.Equal(t, key.Plaintext, unwrapped)
	assert.Equal(t, 2, fake.calls)
}

func TestGenerateDataKeyError(t *testing.T) {
	svc := &AWSKeyService{client: &fakeKMS{generateErr: errors.New("access denied")}}

	_, err := svc.GenerateDataKey(context.Background(), "alias/backup")
	assert.Error(t, err)
}

func TestUnwrapError(t *testing.T) {
	svc := &AWSKeyService{client: &fakeKMS{decryptErr: errors.New("invalid ciphertext")}}

	_, err := svc.Unwrap(context.Background(), []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDataKeyZero(t *testing.T) {
	key := &DataKey{Plaintext: []byte{1, 2, 3, 4}}
	key.Zero()
	assert.Equal(t, []byte{0, 0, 0, 0}, key.Plaintext)
}
