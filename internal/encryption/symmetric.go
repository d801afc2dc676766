package encryption

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"etcd-backup-agent/internal/checksum"
	"etcd-backup-agent/internal/errors"
)

// OpenSSL-compatible password-based format: "Salted__" magic, 8 bytes
// of salt, then AES-256-CBC ciphertext. Key and IV come from
// PBKDF2-SHA256 over the passphrase, so artifacts remain recoverable
// with stock command-line tooling during a disaster.
const (
	opensslMagic         = "Salted__"
	opensslSaltSize      = 8
	symmetricIterations  = 100000
	symmetricKeySize     = 32
	symmetricIVSize      = aes.BlockSize
	symmetricDerivedSize = symmetricKeySize + symmetricIVSize
)

// SymmetricEncryptor implements the password-derived backend
type SymmetricEncryptor struct {
	password string
	engine   *checksum.Engine
}

// NewSymmetricEncryptor creates the symmetric backend
func NewSymmetricEncryptor(password string, engine *checksum.Engine) (*SymmetricEncryptor, error) {
	if password == "" {
		return nil, errors.NewConfigurationError("symmetric encryption requires a non-empty password", nil)
	}
	return &SymmetricEncryptor{password: password, engine: engine}, nil
}

// Method returns MethodSymmetric
func (s *SymmetricEncryptor) Method() Method { return MethodSymmetric }

// Suffix returns ".enc"
func (s *SymmetricEncryptor) Suffix() string { return SuffixSymmetric }

func (s *SymmetricEncryptor) deriveKeyIV(salt []byte) (key, iv []byte) {
	derived := pbkdf2.Key([]byte(s.password), salt, symmetricIterations, symmetricDerivedSize, sha256.New)
	return derived[:symmetricKeySize], derived[symmetricKeySize:]
}

// Encrypt encrypts inputPath into outputPath with a fresh random salt
func (s *SymmetricEncryptor) Encrypt(ctx context.Context, inputPath, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return errors.NewTimeoutError("encryption canceled", err)
	}

	plaintext, err := os.ReadFile(inputPath)
	if err != nil {
		return errors.NewEncryptionError(fmt.Sprintf("failed to read %s", inputPath), err)
	}

	salt := make([]byte, opensslSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return errors.NewEncryptionError("failed to generate salt", err)
	}

	key, iv := s.deriveKeyIV(salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return errors.NewEncryptionError("failed to create AES cipher", err)
	}

	padded := padPKCS7(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	out := make([]byte, 0, len(opensslMagic)+opensslSaltSize+len(ciphertext))
	out = append(out, opensslMagic...)
	out = append(out, salt...)
	out = append(out, ciphertext...)

	if err := os.WriteFile(outputPath, out, 0o600); err != nil {
		return errors.NewEncryptionError(fmt.Sprintf("failed to write %s", outputPath), err)
	}
	return nil
}

// Decrypt decrypts inputPath into outputPath
func (s *SymmetricEncryptor) Decrypt(ctx context.Context, inputPath, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return errors.NewTimeoutError("decryption canceled", err)
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return errors.NewEncryptionError(fmt.Sprintf("failed to read %s", inputPath), err)
	}

	headerSize := len(opensslMagic) + opensslSaltSize
	if len(data) < headerSize || string(data[:len(opensslMagic)]) != opensslMagic {
		return errors.NewCorruptionError(fmt.Sprintf("%s is not a salted symmetric artifact", inputPath), nil)
	}
	salt := data[len(opensslMagic):headerSize]
	ciphertext := data[headerSize:]

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return errors.NewCorruptionError(fmt.Sprintf("%s has a truncated cipher block", inputPath), nil)
	}

	key, iv := s.deriveKeyIV(salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return errors.NewEncryptionError("failed to create AES cipher", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err = unpadPKCS7(plaintext, aes.BlockSize)
	if err != nil {
		return errors.NewEncryptionError("decryption produced invalid padding, wrong password or corrupt data", err)
	}

	if err := os.WriteFile(outputPath, plaintext, 0o600); err != nil {
		return errors.NewEncryptionError(fmt.Sprintf("failed to write %s", outputPath), err)
	}
	return nil
}

// Validate decrypts to a scratch file, compares its checksum against
// the original, and removes the scratch file unconditionally.
func (s *SymmetricEncryptor) Validate(ctx context.Context, encryptedPath, originalChecksum string) error {
	return validateRoundTrip(ctx, s, s.engine, encryptedPath, originalChecksum)
}

func padPKCS7(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func unpadPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding length %d", padLen)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("inconsistent padding bytes")
		}
	}
	return data[:len(data)-padLen], nil
}

// validateRoundTrip is the shared scratch-decrypt validation used by
// the symmetric and KMS backends.
func validateRoundTrip(ctx context.Context, enc Encryptor, engine *checksum.Engine, encryptedPath, originalChecksum string) error {
	scratch := encryptedPath + ".validate"
	defer os.Remove(scratch)

	if err := enc.Decrypt(ctx, encryptedPath, scratch); err != nil {
		return errors.NewValidationError("validation decrypt failed", err)
	}

	digest, err := engine.FileDigest(scratch)
	if err != nil {
		return errors.NewValidationError("failed to checksum validation output", err)
	}
	if digest != originalChecksum {
		return errors.NewValidationError("decrypted checksum does not match original", nil).
			WithContext("expected", originalChecksum).
			WithContext("actual", digest)
	}
	return nil
}
