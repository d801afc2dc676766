package backup

import (
	"os"
	"path/filepath"
	"time"

	"etcd-backup-agent/internal/config"
	"etcd-backup-agent/internal/logging"
)

// RetentionSweeper removes local backup artifacts older than the
// configured age. It never fails the run: each file is handled
// independently and problems are logged.
type RetentionSweeper struct {
	cfg    config.RetentionConfig
	logger *logging.Logger
}

// NewRetentionSweeper creates a local retention sweeper
func NewRetentionSweeper(cfg config.RetentionConfig, logger *logging.Logger) *RetentionSweeper {
	return &RetentionSweeper{cfg: cfg, logger: logger}
}

// Sweep deletes expired artifacts matching the glob patterns under the
// given directory and returns the number of files removed.
func (r *RetentionSweeper) Sweep(dir string, now time.Time, patterns ...string) int {
	if r.cfg.MaxAgeDays <= 0 {
		return 0
	}
	cutoff := now.Add(-time.Duration(r.cfg.MaxAgeDays) * 24 * time.Hour)

	removed := 0
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			r.logger.Warnf("Retention glob %s failed: %v", pattern, err)
			continue
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(match); err != nil {
				r.logger.Warnf("Failed to remove expired backup %s: %v", match, err)
				continue
			}
			r.logger.Debugf("Removed expired backup %s", match)
			removed++
		}
	}

	if removed > 0 {
		r.logger.Infof("Retention sweep removed %d expired files from %s", removed, dir)
	}
	r.pruneEmptyDirs(dir)
	return removed
}

// pruneEmptyDirs removes subdirectories the sweep emptied out. Non-empty
// directories make os.Remove fail, which is the desired behavior.
func (r *RetentionSweeper) pruneEmptyDirs(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			r.logger.Debugf("Removed empty directory %s", filepath.Join(dir, entry.Name()))
		}
	}
}
