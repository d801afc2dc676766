package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"etcd-backup-agent/internal/logging"
)

const readChunkSize = 64 * 1024

// Engine computes content fingerprints for files and directory trees
type Engine struct {
	logger *logging.Logger
}

// NewEngine creates a new checksum engine
func NewEngine(logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Engine{logger: logger}
}

// FileDigest reads the file in fixed-size chunks and returns its hex
// SHA-256 digest. A read failure discards the partial digest and
// returns the error.
func (e *Engine) FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, readChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// TreeDigest enumerates every regular file under root in path-sorted
// order, digests each, and digests the concatenated
// "<relpath>:<digest>" lines. An unreadable file is logged and
// skipped so one bad permission bit does not hide changes in the rest
// of the tree.
func (e *Engine) TreeDigest(root string) (string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(paths)

	var lines []string
	for _, path := range paths {
		digest, err := e.FileDigest(path)
		if err != nil {
			e.logger.Warnf("Skipping unreadable file in tree digest: %s: %v", path, err)
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return "", fmt.Errorf("failed to relativize %s: %w", path, err)
		}
		lines = append(lines, rel+":"+digest)
	}

	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:]), nil
}

// CombineTrees produces the combined fingerprint of the secrets and
// config subtrees used by the CA change detector.
func (e *Engine) CombineTrees(secretsDigest, configDigest string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("secrets:%s\nconfig:%s", secretsDigest, configDigest)))
	return hex.EncodeToString(sum[:])
}
