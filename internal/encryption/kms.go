package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"etcd-backup-agent/internal/checksum"
	"etcd-backup-agent/internal/errors"
	"etcd-backup-agent/internal/kms"
)

// KMSEncryptor implements envelope encryption: one fresh data key per
// file, used locally with AES-256-GCM, stored wrapped inside the
// artifact. The key service is called exactly twice per backup
// regardless of file size: once to wrap, once to unwrap for
// validation.
type KMSEncryptor struct {
	keys   kms.KeyService
	keyID  string
	engine *checksum.Engine
}

// NewKMSEncryptor creates the KMS envelope backend
func NewKMSEncryptor(keys kms.KeyService, keyID string, engine *checksum.Engine) (*KMSEncryptor, error) {
	if keys == nil {
		return nil, errors.NewConfigurationError("kms encryption requires a key service", nil)
	}
	if keyID == "" {
		return nil, errors.NewConfigurationError("kms encryption requires a key id", nil)
	}
	return &KMSEncryptor{keys: keys, keyID: keyID, engine: engine}, nil
}

// Method returns MethodKMS
func (k *KMSEncryptor) Method() Method { return MethodKMS }

// Suffix returns ".kms"
func (k *KMSEncryptor) Suffix() string { return SuffixKMS }

// Encrypt encrypts inputPath into the envelope layout at outputPath
func (k *KMSEncryptor) Encrypt(ctx context.Context, inputPath, outputPath string) error {
	plaintext, err := os.ReadFile(inputPath)
	if err != nil {
		return errors.NewEncryptionError(fmt.Sprintf("failed to read %s", inputPath), err)
	}
	defer zeroBytes(plaintext)

	dataKey, err := k.keys.GenerateDataKey(ctx, k.keyID)
	if err != nil {
		return err
	}
	defer dataKey.Zero()

	gcm, err := newGCM(dataKey.Plaintext)
	if err != nil {
		return err
	}

	nonce := make([]byte, envelopeNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return errors.NewEncryptionError("failed to generate nonce", err)
	}

	env := &envelope{
		WrappedKey: dataKey.Wrapped,
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, plaintext, nil),
	}

	if err := os.WriteFile(outputPath, encodeEnvelope(env), 0o600); err != nil {
		return errors.NewEncryptionError(fmt.Sprintf("failed to write %s", outputPath), err)
	}
	return nil
}

// Decrypt parses the envelope, unwraps the data key, and decrypts the
// ciphertext into outputPath.
func (k *KMSEncryptor) Decrypt(ctx context.Context, inputPath, outputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return errors.NewEncryptionError(fmt.Sprintf("failed to read %s", inputPath), err)
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		return err
	}

	key, err := k.keys.Unwrap(ctx, env.WrappedKey)
	if err != nil {
		return err
	}
	defer zeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return err
	}

	plaintext, err := gcm.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return errors.NewEncryptionError("authenticated decryption failed", err)
	}
	defer zeroBytes(plaintext)

	if err := os.WriteFile(outputPath, plaintext, 0o600); err != nil {
		return errors.NewEncryptionError(fmt.Sprintf("failed to write %s", outputPath), err)
	}
	return nil
}

// Validate round-trips the envelope through a scratch decrypt
func (k *KMSEncryptor) Validate(ctx context.Context, encryptedPath, originalChecksum string) error {
	return validateRoundTrip(ctx, k, k.engine, encryptedPath, originalChecksum)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.NewEncryptionError("failed to create AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.NewEncryptionError("failed to create GCM cipher", err)
	}
	return gcm, nil
}

// zeroBytes overwrites sensitive buffers as soon as they are no
// longer needed, rather than waiting for the collector.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
