package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etcd-backup-agent/internal/config"
	"etcd-backup-agent/internal/encryption"
	"etcd-backup-agent/internal/etcd"
	"etcd-backup-agent/internal/logging"
	"etcd-backup-agent/internal/notify"
	"etcd-backup-agent/internal/storage"
)

type fakeStore struct {
	objects  map[string][]byte
	metadata map[string]map[string]string
	tags     map[string]map[string]string
	puts     []string

	listObjects []storage.ObjectInfo
	listErr     error
	putErr      error
	headMissing bool
	getCorrupt  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:  make(map[string][]byte),
		metadata: make(map[string]map[string]string),
		tags:     make(map[string]map[string]string),
	}
}

func (f *fakeStore) Put(ctx context.Context, localPath, remotePath string, metadata map[string]string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.objects[remotePath] = data
	f.metadata[remotePath] = metadata
	f.puts = append(f.puts, remotePath)
	return nil
}

func (f *fakeStore) HeadExists(ctx context.Context, remotePath string) (bool, error) {
	if f.headMissing {
		return false, nil
	}
	_, ok := f.objects[remotePath]
	return ok, nil
}

func (f *fakeStore) Get(ctx context.Context, remotePath, localPath string) error {
	data, ok := f.objects[remotePath]
	if !ok {
		return fmt.Errorf("object %s not found", remotePath)
	}
	if f.getCorrupt {
		data = append([]byte("corrupt"), data...)
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (f *fakeStore) ListModifiedSince(ctx context.Context, prefix string, cutoff time.Time) ([]storage.ObjectInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listObjects, nil
}

func (f *fakeStore) Tag(ctx context.Context, remotePath string, tags map[string]string) error {
	f.tags[remotePath] = tags
	return nil
}

type fakeEncryptor struct {
	validateErr error
	encryptErr  error

	// emit a directory instead of a file, so hashing the output fails
	outputDir bool
}

func (f *fakeEncryptor) Method() encryption.Method { return encryption.MethodSymmetric }
func (f *fakeEncryptor) Suffix() string            { return encryption.SuffixSymmetric }

func (f *fakeEncryptor) Encrypt(ctx context.Context, inputPath, outputPath string) error {
	if f.encryptErr != nil {
		return f.encryptErr
	}
	if f.outputDir {
		return os.Mkdir(outputPath, 0o755)
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, append([]byte("SEALED"), data...), 0o600)
}

func (f *fakeEncryptor) Decrypt(ctx context.Context, inputPath, outputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data[len("SEALED"):], 0o600)
}

func (f *fakeEncryptor) Validate(ctx context.Context, encryptedPath, originalChecksum string) error {
	return f.validateErr
}

type fakeEtcdClient struct {
	healthErr   error
	snapshotErr error
	statusErr   error
	saveDir     bool

	statusCalls int
	saveCalls   int
}

func (f *fakeEtcdClient) Health(ctx context.Context, endpoint string) error {
	return f.healthErr
}

func (f *fakeEtcdClient) SnapshotSave(ctx context.Context, endpoint, destPath string) error {
	f.saveCalls++
	if f.snapshotErr != nil {
		return f.snapshotErr
	}
	if f.saveDir {
		return os.Mkdir(destPath, 0o755)
	}
	return os.WriteFile(destPath, []byte("etcd snapshot payload"), 0o600)
}

func (f *fakeEtcdClient) SnapshotStatus(ctx context.Context, path string) error {
	f.statusCalls++
	return f.statusErr
}

type fakeReporter struct {
	statuses []notify.Status
}

func (f *fakeReporter) Ping(ctx context.Context, status notify.Status) {
	f.statuses = append(f.statuses, status)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	base := t.TempDir()

	secretsDir := filepath.Join(base, "secrets")
	configDir := filepath.Join(base, "pki-config")
	require.NoError(t, os.MkdirAll(secretsDir, 0o755))
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(secretsDir, "ca.key"), []byte("key material"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "ca.conf"), []byte("settings"), 0o644))

	return config.Config{
		ClusterName: "prod",
		Etcd: config.EtcdConfig{
			Endpoints:   []string{"https://127.0.0.1:2379"},
			BackupDir:   filepath.Join(base, "etcd-backups"),
			DataDirGlob: filepath.Join(base, "member", "snap", "db"),
		},
		CA: config.CAConfig{
			SecretsDir: secretsDir,
			ConfigDir:  configDir,
			BackupDir:  filepath.Join(base, "ca-backups"),
		},
		Storage:  config.StorageConfig{Provider: "s3", Bucket: "backups", Prefix: "backups"},
		StateDir: filepath.Join(base, "state"),
		Retention: config.RetentionConfig{
			MaxAgeDays: 14,
		},
		Timeouts: config.TimeoutConfig{
			Health:   5 * time.Second,
			Snapshot: 5 * time.Second,
			Storage:  5 * time.Second,
			Run:      time.Minute,
		},
	}
}

func newTestOrchestrator(cfg config.Config, store *fakeStore, etcdClient etcd.Client) (*Orchestrator, *fakeReporter) {
	reporter := &fakeReporter{}
	o := NewOrchestrator(cfg, store, &fakeEncryptor{}, etcdClient, reporter, logging.NewDefaultLogger())
	o.now = func() time.Time {
		return time.Date(2026, 3, 14, 2, 30, 0, 0, time.UTC)
	}
	return o, reporter
}

func TestRunEtcdHappyPath(t *testing.T) {
	cfg := testConfig(t)
	store := newFakeStore()
	etcdClient := &fakeEtcdClient{}
	o, reporter := newTestOrchestrator(cfg, store, etcdClient)

	outcome := o.RunEtcd(context.Background())
	require.NoError(t, outcome.Err)
	assert.Equal(t, OutcomeCompleted, outcome.Kind)
	assert.True(t, outcome.OK())

	remote := "backups/2026/03/prod-2026-03-14_02-30-00-online-snapshot.db.enc"
	require.Contains(t, store.objects, remote)
	require.Contains(t, store.objects, remote+".sha256")
	assert.Contains(t, store.objects, "backups/latest-snapshot.db.enc")
	require.Contains(t, store.objects, "backups/latest-snapshot.db.enc.sha256")

	// each sidecar names the file it checks, so sha256sum -c works on
	// a downloaded copy under either name
	assert.True(t, strings.HasSuffix(string(store.objects[remote+".sha256"]),
		"  prod-2026-03-14_02-30-00-online-snapshot.db\n"))
	assert.True(t, strings.HasSuffix(string(store.objects["backups/latest-snapshot.db.enc.sha256"]),
		"  latest-snapshot.db\n"))
	assert.NoFileExists(t, filepath.Join(cfg.Etcd.BackupDir, "latest-snapshot.db.sha256"))

	meta := store.metadata[remote]
	assert.Equal(t, "2026-03-14_02-30-00", meta["backup-timestamp"])
	assert.NotEmpty(t, meta["snapshot-checksum"])
	assert.NotEmpty(t, meta["encrypted-checksum"])
	assert.NotEqual(t, meta["snapshot-checksum"], meta["encrypted-checksum"])

	tags := store.tags[remote]
	assert.Equal(t, "etcd", tags["Type"])
	assert.Equal(t, "prod", tags["Cluster"])
	assert.Equal(t, "long-term", tags["Retention"])

	// raw timestamped snapshot and rolling copy stay, encrypted copy is gone
	rawPath := filepath.Join(cfg.Etcd.BackupDir, "prod-2026-03-14_02-30-00-online-snapshot.db")
	assert.FileExists(t, rawPath)
	assert.FileExists(t, filepath.Join(cfg.Etcd.BackupDir, "prod-snapshot.db"))
	assert.NoFileExists(t, rawPath+".enc")

	assert.Equal(t, 1, etcdClient.statusCalls)
	require.Len(t, reporter.statuses, 1)
	assert.Equal(t, notify.StatusSuccess, reporter.statuses[0])
}

func TestRunEtcdOfflineFallback(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Etcd.DataDirGlob), 0o755))
	require.NoError(t, os.WriteFile(cfg.Etcd.DataDirGlob, []byte("cold db bytes"), 0o600))

	store := newFakeStore()
	etcdClient := &fakeEtcdClient{healthErr: fmt.Errorf("connection refused")}
	o, _ := newTestOrchestrator(cfg, store, etcdClient)

	outcome := o.RunEtcd(context.Background())
	require.NoError(t, outcome.Err)
	assert.Equal(t, OutcomeCompleted, outcome.Kind)

	assert.Contains(t, store.objects, "backups/2026/03/prod-2026-03-14_02-30-00-offline-snapshot.db.enc")
	assert.Equal(t, 0, etcdClient.saveCalls)
	assert.Equal(t, 1, etcdClient.statusCalls, "cold copies get the same integrity check")
}

func TestRunEtcdOnlineOnlyAbortsWhenUnhealthy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Etcd.OnlineOnly = true

	store := newFakeStore()
	o, reporter := newTestOrchestrator(cfg, store, &fakeEtcdClient{healthErr: fmt.Errorf("unreachable")})

	outcome := o.RunEtcd(context.Background())
	require.Error(t, outcome.Err)
	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.False(t, outcome.OK())
	assert.Empty(t, store.puts)
	require.Len(t, reporter.statuses, 1)
	assert.Equal(t, notify.StatusClusterUnhealthy, reporter.statuses[0])
}

func TestRunEtcdSuppressedByRecentUpload(t *testing.T) {
	cfg := testConfig(t)
	cfg.Coordination = config.CoordinationConfig{Distributed: true, WindowMinutes: 60}

	store := newFakeStore()
	store.listObjects = []storage.ObjectInfo{
		{Key: "backups/2026/03/other-node-2026-03-14_02-10-00-online-snapshot.db.enc", LastModified: time.Now()},
	}
	o, reporter := newTestOrchestrator(cfg, store, &fakeEtcdClient{})

	outcome := o.RunEtcd(context.Background())
	assert.Equal(t, OutcomeSkipped, outcome.Kind)
	assert.True(t, outcome.OK())
	assert.Empty(t, store.puts)
	require.Len(t, reporter.statuses, 1)
	assert.Equal(t, notify.StatusBackupExists, reporter.statuses[0])
}

func TestRunEtcdIndependentBypassesSuppression(t *testing.T) {
	cfg := testConfig(t)
	cfg.Coordination = config.CoordinationConfig{Distributed: true, Independent: true, WindowMinutes: 60}

	store := newFakeStore()
	store.listObjects = []storage.ObjectInfo{
		{Key: "backups/2026/03/other-node-2026-03-14_02-10-00-online-snapshot.db.enc", LastModified: time.Now()},
	}
	o, _ := newTestOrchestrator(cfg, store, &fakeEtcdClient{})

	outcome := o.RunEtcd(context.Background())
	assert.Equal(t, OutcomeCompleted, outcome.Kind)
	assert.NotEmpty(t, store.puts)
}

func TestRunEtcdListFailureStillBacksUp(t *testing.T) {
	cfg := testConfig(t)
	cfg.Coordination = config.CoordinationConfig{Distributed: true, WindowMinutes: 60}

	store := newFakeStore()
	store.listErr = fmt.Errorf("listing unavailable")
	o, _ := newTestOrchestrator(cfg, store, &fakeEtcdClient{})

	outcome := o.RunEtcd(context.Background())
	assert.Equal(t, OutcomeCompleted, outcome.Kind)
	assert.NotEmpty(t, store.puts)
}

func TestRunEtcdValidationFailureCleansUp(t *testing.T) {
	cfg := testConfig(t)
	store := newFakeStore()
	reporter := &fakeReporter{}
	enc := &fakeEncryptor{validateErr: fmt.Errorf("round trip mismatch")}
	o := NewOrchestrator(cfg, store, enc, &fakeEtcdClient{}, reporter, logging.NewDefaultLogger())

	outcome := o.RunEtcd(context.Background())
	require.Error(t, outcome.Err)
	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.Empty(t, store.puts)

	entries, err := os.ReadDir(cfg.Etcd.BackupDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed validation must leave no artifacts behind")
	require.Len(t, reporter.statuses, 1)
	assert.Equal(t, notify.StatusFailure, reporter.statuses[0])
}

func TestRunEtcdVerifyMismatchIsFatal(t *testing.T) {
	cfg := testConfig(t)
	store := newFakeStore()
	store.getCorrupt = true
	o, reporter := newTestOrchestrator(cfg, store, &fakeEtcdClient{})

	outcome := o.RunEtcd(context.Background())
	require.Error(t, outcome.Err)
	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.Contains(t, outcome.Err.Error(), "does not match")

	entries, err := os.ReadDir(cfg.Etcd.BackupDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.Len(t, reporter.statuses, 1)
	assert.Equal(t, notify.StatusFailure, reporter.statuses[0])
}

func TestRunEtcdSnapshotDigestFailureCleansUp(t *testing.T) {
	cfg := testConfig(t)
	store := newFakeStore()
	o, _ := newTestOrchestrator(cfg, store, &fakeEtcdClient{saveDir: true})

	outcome := o.RunEtcd(context.Background())
	require.Error(t, outcome.Err)
	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.Empty(t, store.puts)

	entries, err := os.ReadDir(cfg.Etcd.BackupDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a snapshot that cannot be hashed must not linger")
}

func TestRunEtcdEncryptedDigestFailureCleansUp(t *testing.T) {
	cfg := testConfig(t)
	store := newFakeStore()
	reporter := &fakeReporter{}
	enc := &fakeEncryptor{outputDir: true}
	o := NewOrchestrator(cfg, store, enc, &fakeEtcdClient{}, reporter, logging.NewDefaultLogger())

	outcome := o.RunEtcd(context.Background())
	require.Error(t, outcome.Err)
	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.Empty(t, store.puts)

	entries, err := os.ReadDir(cfg.Etcd.BackupDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunEtcdDryRunUploadsNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.DryRun = true
	store := newFakeStore()
	etcdClient := &fakeEtcdClient{}
	o, reporter := newTestOrchestrator(cfg, store, etcdClient)

	outcome := o.RunEtcd(context.Background())
	assert.Equal(t, OutcomeSkipped, outcome.Kind)
	assert.Empty(t, store.puts)
	assert.Empty(t, reporter.statuses)

	// a dry run only reports the plan, it never takes a snapshot or
	// touches the backup directory
	assert.Equal(t, 0, etcdClient.saveCalls)
	assert.NoDirExists(t, cfg.Etcd.BackupDir)
}

func TestRunCADryRunCreatesNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.DryRun = true
	store := newFakeStore()
	o, reporter := newTestOrchestrator(cfg, store, &fakeEtcdClient{})

	outcome := o.RunCA(context.Background())
	assert.Equal(t, OutcomeSkipped, outcome.Kind)
	assert.Empty(t, store.puts)
	assert.NoDirExists(t, cfg.CA.BackupDir)
	assert.Empty(t, reporter.statuses)
}

func TestRunCAHappyPath(t *testing.T) {
	cfg := testConfig(t)
	store := newFakeStore()
	o, reporter := newTestOrchestrator(cfg, store, &fakeEtcdClient{})

	outcome := o.RunCA(context.Background())
	require.NoError(t, outcome.Err)
	assert.Equal(t, OutcomeCompleted, outcome.Kind)

	remote := "backups/2026/03/ca-backup-2026-03-14_02-30-00.tar.gz.enc"
	require.Contains(t, store.objects, remote)
	assert.Contains(t, store.objects, "backups/latest-ca-backup.tar.gz.enc")
	assert.True(t, strings.HasSuffix(string(store.objects["backups/latest-ca-backup.tar.gz.enc.sha256"]),
		"  latest-ca-backup.tar.gz\n"))

	meta := store.metadata[remote]
	assert.NotEmpty(t, meta["original-checksum"])
	assert.NotEmpty(t, meta["encrypted-checksum"])
	assert.NotEqual(t, meta["original-checksum"], meta["encrypted-checksum"])
	assert.Equal(t, "ca", store.tags[remote]["Type"])

	assert.FileExists(t, filepath.Join(cfg.CA.BackupDir, "ca-backup-2026-03-14_02-30-00.tar.gz"))
	require.Len(t, reporter.statuses, 1)
	assert.Equal(t, notify.StatusSuccess, reporter.statuses[0])
}

func TestRunCANoChangesSkipsBeforeStoreAccess(t *testing.T) {
	cfg := testConfig(t)
	store := newFakeStore()
	o, _ := newTestOrchestrator(cfg, store, &fakeEtcdClient{})

	first := o.RunCA(context.Background())
	require.Equal(t, OutcomeCompleted, first.Kind)

	store.puts = nil
	store.listErr = fmt.Errorf("store must not be touched")
	second := o.RunCA(context.Background())

	assert.Equal(t, OutcomeSkipped, second.Kind)
	assert.True(t, second.OK())
	assert.Equal(t, notify.StatusNoChanges, second.Status)
	assert.Empty(t, store.puts)
}

func TestRunCAForceOverridesNoChanges(t *testing.T) {
	cfg := testConfig(t)
	store := newFakeStore()
	o, _ := newTestOrchestrator(cfg, store, &fakeEtcdClient{})

	require.Equal(t, OutcomeCompleted, o.RunCA(context.Background()).Kind)

	cfg.CA.Force = true
	forced, _ := newTestOrchestrator(cfg, store, &fakeEtcdClient{})
	store.puts = nil

	assert.Equal(t, OutcomeCompleted, forced.RunCA(context.Background()).Kind)
	assert.NotEmpty(t, store.puts)
}

func TestRunCAChangedContentBackedUpAgain(t *testing.T) {
	cfg := testConfig(t)
	store := newFakeStore()
	o, _ := newTestOrchestrator(cfg, store, &fakeEtcdClient{})

	require.Equal(t, OutcomeCompleted, o.RunCA(context.Background()).Kind)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.CA.SecretsDir, "ca.key"), []byte("rotated key"), 0o600))
	store.puts = nil

	assert.Equal(t, OutcomeCompleted, o.RunCA(context.Background()).Kind)
	assert.NotEmpty(t, store.puts)
}

func TestRunCAFailedUploadDoesNotRecordState(t *testing.T) {
	cfg := testConfig(t)
	store := newFakeStore()
	store.putErr = fmt.Errorf("bucket unavailable")
	o, _ := newTestOrchestrator(cfg, store, &fakeEtcdClient{})

	require.Equal(t, OutcomeFailed, o.RunCA(context.Background()).Kind)

	// after the store recovers the same content must be retried,
	// not suppressed as unchanged
	store.putErr = nil
	outcome := o.RunCA(context.Background())
	assert.Equal(t, OutcomeCompleted, outcome.Kind)
	assert.NotEmpty(t, store.puts)
}

func TestChangeStateRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	s := NewChangeState(dir, "ca-backup")

	last, err := s.Last()
	require.NoError(t, err)
	assert.Empty(t, last)

	require.NoError(t, s.Record("abc123"))
	last, err = s.Last()
	require.NoError(t, err)
	assert.Equal(t, "abc123", last)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestRetentionSweepRemovesOnlyExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	oldFile := filepath.Join(dir, "prod-2026-01-01_00-00-00-online-snapshot.db")
	newFile := filepath.Join(dir, "prod-2026-03-14_02-30-00-online-snapshot.db")
	require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o600))
	require.NoError(t, os.WriteFile(newFile, []byte("new"), 0o600))
	require.NoError(t, os.Chtimes(oldFile, now.Add(-30*24*time.Hour), now.Add(-30*24*time.Hour)))

	sweeper := NewRetentionSweeper(config.RetentionConfig{MaxAgeDays: 14}, logging.NewDefaultLogger())
	removed := sweeper.Sweep(dir, now, "*-snapshot.db")

	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, oldFile)
	assert.FileExists(t, newFile)
}

func TestRetentionSweepPrunesEmptiedDirectories(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	emptyDir := filepath.Join(dir, "2025")
	fullDir := filepath.Join(dir, "2026")
	require.NoError(t, os.MkdirAll(emptyDir, 0o755))
	require.NoError(t, os.MkdirAll(fullDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(fullDir, "keep.db"), []byte("x"), 0o600))

	sweeper := NewRetentionSweeper(config.RetentionConfig{MaxAgeDays: 14}, logging.NewDefaultLogger())
	sweeper.Sweep(dir, now, "*-snapshot.db")

	assert.NoDirExists(t, emptyDir)
	assert.DirExists(t, fullDir)
}

func TestRetentionSweepDisabledWithoutMaxAge(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "prod-old-snapshot.db")
	require.NoError(t, os.WriteFile(file, []byte("old"), 0o600))
	require.NoError(t, os.Chtimes(file, time.Now().Add(-365*24*time.Hour), time.Now().Add(-365*24*time.Hour)))

	sweeper := NewRetentionSweeper(config.RetentionConfig{}, logging.NewDefaultLogger())
	assert.Equal(t, 0, sweeper.Sweep(dir, time.Now(), "*-snapshot.db"))
	assert.FileExists(t, file)
}

func TestArtifactNaming(t *testing.T) {
	ts := time.Date(2026, 3, 14, 2, 30, 0, 0, time.UTC)

	assert.Equal(t, "prod-2026-03-14_02-30-00-online-snapshot.db", EtcdSnapshotName("prod", ts, etcd.Healthy))
	assert.Equal(t, "prod-2026-03-14_02-30-00-offline-snapshot.db", EtcdSnapshotName("prod", ts, etcd.Unhealthy))
	assert.Equal(t, "ca-backup-2026-03-14_02-30-00.tar.gz", CAArchiveName(ts))
	assert.Equal(t, "prod-snapshot.db", LocalCopyName("prod"))
	assert.Equal(t, "backups/2026/03/x.db", RemotePath("backups", ts, "x.db"))
	assert.Equal(t, "backups/latest-snapshot.db", LatestPath("backups", LatestSnapshotName))

	tags := ArtifactTags("etcd", "prod", ts)
	assert.Equal(t, "2026-03-14_02-30-00", tags["Timestamp"])
	assert.Equal(t, "true", tags["Latest"])
}

func TestSuppressorMatchesFragment(t *testing.T) {
	store := newFakeStore()
	store.listObjects = []storage.ObjectInfo{
		{Key: "backups/2026/03/ca-backup-2026-03-14_02-00-00.tar.gz.enc"},
	}
	cfg := config.CoordinationConfig{Distributed: true, WindowMinutes: 60}
	s := NewSuppressor(store, cfg, "backups", logging.NewDefaultLogger())

	assert.True(t, s.RecentBackupExists(context.Background(), time.Now(), "ca-backup-"))
	assert.False(t, s.RecentBackupExists(context.Background(), time.Now(), "-snapshot.db"))
}

func TestOutcomeHelpers(t *testing.T) {
	assert.True(t, Completed().OK())
	assert.True(t, Skipped("reason", notify.StatusNoChanges).OK())
	assert.False(t, Failed(fmt.Errorf("boom")).OK())

	skip := Skipped("source material unchanged", notify.StatusNoChanges)
	assert.True(t, strings.Contains(skip.Reason, "unchanged"))
}
