package backup

import (
	"context"
	"strings"
	"time"

	"etcd-backup-agent/internal/config"
	"etcd-backup-agent/internal/logging"
	"etcd-backup-agent/internal/storage"
)

// Suppressor decides whether another cluster node has already uploaded
// a backup within the coordination window, in which case this node can
// skip its own run. The check is advisory: a listing failure is logged
// and treated as "no recent backup" so a degraded store listing never
// blocks backups outright.
type Suppressor struct {
	store  storage.ObjectStore
	cfg    config.CoordinationConfig
	prefix string
	logger *logging.Logger
}

// NewSuppressor creates a duplicate-suppression checker
func NewSuppressor(store storage.ObjectStore, cfg config.CoordinationConfig, prefix string, logger *logging.Logger) *Suppressor {
	return &Suppressor{store: store, cfg: cfg, prefix: prefix, logger: logger}
}

// RecentBackupExists reports whether a backup artifact containing the
// given name fragment was uploaded within the coordination window.
// Always false when coordination is disabled or the node runs
// independently.
func (s *Suppressor) RecentBackupExists(ctx context.Context, now time.Time, nameFragment string) bool {
	if !s.cfg.Distributed || s.cfg.Independent {
		return false
	}

	cutoff := now.Add(-time.Duration(s.cfg.WindowMinutes) * time.Minute)
	objects, err := s.store.ListModifiedSince(ctx, s.prefix, cutoff)
	if err != nil {
		s.logger.Warnf("Duplicate-suppression listing failed, proceeding with backup: %v", err)
		return false
	}

	for _, obj := range objects {
		if strings.Contains(obj.Key, nameFragment) {
			s.logger.WithFields(map[string]interface{}{
				"key":      obj.Key,
				"modified": obj.LastModified.Format(time.RFC3339),
			}).Info("Recent backup found, skipping this node's run")
			return true
		}
	}
	return false
}
