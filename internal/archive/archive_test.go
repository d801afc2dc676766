package archive

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func listEntries(t *testing.T, path string) map[string][]byte {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	entries := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = data
	}
	return entries
}

func TestCreateAndVerify(t *testing.T) {
	secrets := t.TempDir()
	writeFile(t, secrets, "ca.key", []byte("private key"))
	writeFile(t, secrets, "intermediate/ca.key", []byte("intermediate key"))

	config := t.TempDir()
	writeFile(t, config, "openssl.cnf", []byte("[ca]"))

	outPath := filepath.Join(t.TempDir(), "ca-backup.tar.gz")
	builder := NewBuilder(nil)

	err := builder.Create(context.Background(), outPath, map[string]string{
		"secrets": secrets,
		"config":  config,
	})
	require.NoError(t, err)

	entries := listEntries(t, outPath)
	assert.Equal(t, []byte("private key"), entries["secrets/ca.key"])
	assert.Equal(t, []byte("intermediate key"), entries["secrets/intermediate/ca.key"])
	assert.Equal(t, []byte("[ca]"), entries["config/openssl.cnf"])

	assert.NoError(t, builder.Verify(outPath))
}

func TestCreateMissingSource(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "ca-backup.tar.gz")
	builder := NewBuilder(nil)

	err := builder.Create(context.Background(), outPath, map[string]string{
		"secrets": filepath.Join(t.TempDir(), "missing"),
	})
	assert.Error(t, err)
	assert.NoFileExists(t, outPath)
}

func TestCreateCanceledContext(t *testing.T) {
	secrets := t.TempDir()
	writeFile(t, secrets, "ca.key", []byte("private key"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outPath := filepath.Join(t.TempDir(), "ca-backup.tar.gz")
	err := NewBuilder(nil).Create(ctx, outPath, map[string]string{"secrets": secrets})
	assert.Error(t, err)
	assert.NoFileExists(t, outPath)
}

func TestVerifyCorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("this is not gzip"), 0o644))

	assert.Error(t, NewBuilder(nil).Verify(path))
}

func TestVerifyTruncatedArchive(t *testing.T) {
	secrets := t.TempDir()
	writeFile(t, secrets, "ca.key", make([]byte, 64*1024))

	outPath := filepath.Join(t.TempDir(), "ca-backup.tar.gz")
	builder := NewBuilder(nil)
	require.NoError(t, builder.Create(context.Background(), outPath, map[string]string{"secrets": secrets}))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(outPath, data[:len(data)/2], 0o644))

	assert.Error(t, builder.Verify(outPath))
}

func TestVerifyMissingArchive(t *testing.T) {
	assert.Error(t, NewBuilder(nil).Verify(filepath.Join(t.TempDir(), "missing.tar.gz")))
}
