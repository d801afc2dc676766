package encryption

import (
	"context"
	"fmt"
	"io"
	"os"

	"etcd-backup-agent/internal/errors"
)

// NoneEncryptor is the identity backend: artifacts are copied
// untouched and validation always passes.
type NoneEncryptor struct{}

// NewNoneEncryptor creates the identity encryptor
func NewNoneEncryptor() *NoneEncryptor {
	return &NoneEncryptor{}
}

// Method returns MethodNone
func (n *NoneEncryptor) Method() Method { return MethodNone }

// Suffix returns the empty string
func (n *NoneEncryptor) Suffix() string { return "" }

// Encrypt copies the input file unchanged
func (n *NoneEncryptor) Encrypt(ctx context.Context, inputPath, outputPath string) error {
	return copyFile(inputPath, outputPath)
}

// Decrypt copies the input file unchanged
func (n *NoneEncryptor) Decrypt(ctx context.Context, inputPath, outputPath string) error {
	return copyFile(inputPath, outputPath)
}

// Validate always succeeds for the identity backend
func (n *NoneEncryptor) Validate(ctx context.Context, encryptedPath, originalChecksum string) error {
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.NewEncryptionError(fmt.Sprintf("failed to open %s", src), err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.NewEncryptionError(fmt.Sprintf("failed to create %s", dst), err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return errors.NewEncryptionError(fmt.Sprintf("failed to copy %s to %s", src, dst), err)
	}
	return out.Sync()
}
