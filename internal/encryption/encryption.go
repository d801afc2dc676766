package encryption

import (
	"context"
	"strings"
)

// Method identifies an encryption backend
type Method string

const (
	// MethodNone stores artifacts unencrypted
	MethodNone Method = "none"
	// MethodSymmetric uses a password-derived AES-256-CBC cipher
	MethodSymmetric Method = "symmetric"
	// MethodKMS uses envelope encryption with a per-file data key
	MethodKMS Method = "kms"
)

// Remote artifact suffixes per method
const (
	SuffixSymmetric = ".enc"
	SuffixKMS       = ".kms"
)

// Encryptor is the capability surface shared by all backends. Backend
// selection happens once at startup and never silently falls back.
type Encryptor interface {
	// Method returns the backend identity
	Method() Method

	// Suffix returns the artifact name suffix for this backend
	Suffix() string

	// Encrypt encrypts inputPath into outputPath
	Encrypt(ctx context.Context, inputPath, outputPath string) error

	// Decrypt decrypts inputPath into outputPath
	Decrypt(ctx context.Context, inputPath, outputPath string) error

	// Validate round-trips the encrypted file through a scratch
	// decrypt and compares against the original checksum. The scratch
	// file is always removed.
	Validate(ctx context.Context, encryptedPath, originalChecksum string) error
}

// MethodFromSuffix derives the encryption method from an artifact
// name, used by the restore path's auto-detection.
func MethodFromSuffix(name string) Method {
	switch {
	case strings.HasSuffix(name, SuffixKMS):
		return MethodKMS
	case strings.HasSuffix(name, SuffixSymmetric):
		return MethodSymmetric
	default:
		return MethodNone
	}
}

// TrimSuffix removes the encryption suffix from an artifact name, if
// present.
func TrimSuffix(name string) string {
	name = strings.TrimSuffix(name, SuffixKMS)
	name = strings.TrimSuffix(name, SuffixSymmetric)
	return name
}
