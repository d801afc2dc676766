package backup

import (
	"fmt"
	"path"
	"time"

	"etcd-backup-agent/internal/etcd"
)

// TimestampFormat is the layout embedded in artifact names
const TimestampFormat = "2006-01-02_15-04-05"

const (
	// LatestSnapshotName is the stable remote alias for the newest etcd snapshot
	LatestSnapshotName = "latest-snapshot.db"

	// LatestCAName is the stable remote alias for the newest CA archive
	LatestCAName = "latest-ca-backup.tar.gz"
)

// EtcdSnapshotName builds the timestamped etcd snapshot file name. The
// infix records whether the snapshot was taken from a live member or
// copied from an offline data directory.
func EtcdSnapshotName(cluster string, ts time.Time, health etcd.HealthState) string {
	return fmt.Sprintf("%s-%s-%s-snapshot.db", cluster, ts.Format(TimestampFormat), health.Infix())
}

// CAArchiveName builds the timestamped CA archive file name
func CAArchiveName(ts time.Time) string {
	return fmt.Sprintf("ca-backup-%s.tar.gz", ts.Format(TimestampFormat))
}

// LocalCopyName is the name of the rolling unencrypted snapshot copy
// kept beside the timestamped artifacts for fast local restores.
func LocalCopyName(cluster string) string {
	return fmt.Sprintf("%s-snapshot.db", cluster)
}

// RemotePath places an artifact under the configured prefix in
// year/month subdirectories so listings stay manageable as history grows.
func RemotePath(prefix string, ts time.Time, name string) string {
	return path.Join(prefix, ts.Format("2006"), ts.Format("01"), name)
}

// LatestPath places a stable alias directly under the configured prefix
func LatestPath(prefix, name string) string {
	return path.Join(prefix, name)
}

// ArtifactTags builds the object tags applied to every uploaded backup
func ArtifactTags(backupType, cluster string, ts time.Time) map[string]string {
	return map[string]string{
		"Type":      backupType,
		"Cluster":   cluster,
		"Timestamp": ts.Format(TimestampFormat),
		"Retention": "long-term",
		"Latest":    "true",
	}
}
