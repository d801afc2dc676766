package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"etcd-backup-agent/internal/errors"
	"etcd-backup-agent/internal/logging"
)

// Builder creates and verifies tar.gz bundles of directory trees
type Builder struct {
	logger *logging.Logger
}

// NewBuilder creates a new archive builder
func NewBuilder(logger *logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Builder{logger: logger}
}

// Create writes a tar.gz archive at outPath containing each source
// directory tree under its given top-level name. Entry order within a
// source follows the filesystem walk.
func (b *Builder) Create(ctx context.Context, outPath string, sources map[string]string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return errors.NewArchiveError(fmt.Sprintf("failed to create archive %s", outPath), err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	for name, dir := range sources {
		if err := b.addTree(ctx, tw, name, dir); err != nil {
			tw.Close()
			gz.Close()
			os.Remove(outPath)
			return err
		}
	}

	if err := tw.Close(); err != nil {
		os.Remove(outPath)
		return errors.NewArchiveError("failed to finalize tar stream", err)
	}
	if err := gz.Close(); err != nil {
		os.Remove(outPath)
		return errors.NewArchiveError("failed to finalize gzip stream", err)
	}
	if err := out.Sync(); err != nil {
		return errors.NewArchiveError("failed to sync archive to disk", err)
	}

	return nil
}

func (b *Builder) addTree(ctx context.Context, tw *tar.Writer, name, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.NewArchiveError(fmt.Sprintf("failed to walk %s", dir), err)
		}
		if ctx.Err() != nil {
			return errors.NewTimeoutError("archive creation canceled", ctx.Err())
		}

		info, err := d.Info()
		if err != nil {
			return errors.NewArchiveError(fmt.Sprintf("failed to stat %s", path), err)
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return errors.NewArchiveError(fmt.Sprintf("failed to relativize %s", path), err)
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return errors.NewArchiveError(fmt.Sprintf("failed to build tar header for %s", path), err)
		}
		hdr.Name = filepath.ToSlash(filepath.Join(name, rel))

		if err := tw.WriteHeader(hdr); err != nil {
			return errors.NewArchiveError(fmt.Sprintf("failed to write tar header for %s", path), err)
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return errors.NewArchiveError(fmt.Sprintf("failed to open %s", path), err)
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return errors.NewArchiveError(fmt.Sprintf("failed to archive %s", path), err)
		}
		return nil
	})
}

// Verify reopens the archive and walks every entry to the end of the
// stream. A truncated or corrupt bundle fails here, before it is ever
// encrypted or uploaded.
func (b *Builder) Verify(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.NewArchiveError(fmt.Sprintf("failed to open archive %s", path), err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errors.NewCorruptionError(fmt.Sprintf("archive %s is not a valid gzip stream", path), err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	entries := 0
	for {
		_, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.NewCorruptionError(fmt.Sprintf("archive %s has a corrupt tar entry", path), err)
		}
		if _, err := io.Copy(io.Discard, tr); err != nil {
			return errors.NewCorruptionError(fmt.Sprintf("archive %s has truncated entry data", path), err)
		}
		entries++
	}

	if entries == 0 {
		return errors.NewCorruptionError(fmt.Sprintf("archive %s contains no entries", path), nil)
	}

	b.logger.Debugf("Archive %s verified, %d entries", path, entries)
	return nil
}
