package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"etcd-backup-agent/internal/archive"
	"etcd-backup-agent/internal/checksum"
	"etcd-backup-agent/internal/config"
	"etcd-backup-agent/internal/encryption"
	"etcd-backup-agent/internal/errors"
	"etcd-backup-agent/internal/etcd"
	"etcd-backup-agent/internal/logging"
	"etcd-backup-agent/internal/notify"
	"etcd-backup-agent/internal/storage"
)

// StatusReporter reports a run result to the monitoring webhook
type StatusReporter interface {
	Ping(ctx context.Context, status notify.Status)
}

// Orchestrator drives the backup pipelines: acquire an artifact,
// fingerprint it, encrypt it, upload it, verify the upload, then
// publish convenience pointers and clean up.
type Orchestrator struct {
	cfg      config.Config
	store    storage.ObjectStore
	enc      encryption.Encryptor
	etcd     etcd.Client
	engine   *checksum.Engine
	archiver *archive.Builder
	suppress *Suppressor
	sweeper  *RetentionSweeper
	reporter StatusReporter
	logger   *logging.Logger

	now func() time.Time
}

// NewOrchestrator wires a backup orchestrator from its collaborators
func NewOrchestrator(cfg config.Config, store storage.ObjectStore, enc encryption.Encryptor,
	etcdClient etcd.Client, reporter StatusReporter, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		enc:      enc,
		etcd:     etcdClient,
		engine:   checksum.NewEngine(logger),
		archiver: archive.NewBuilder(logger),
		suppress: NewSuppressor(store, cfg.Coordination, cfg.Storage.Prefix, logger),
		sweeper:  NewRetentionSweeper(cfg.Retention, logger),
		reporter: reporter,
		logger:   logger,
		now:      time.Now,
	}
}

// RunEtcd executes the etcd snapshot pipeline and reports the outcome
// to the monitoring webhook.
func (o *Orchestrator) RunEtcd(ctx context.Context) Outcome {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Run)
	defer cancel()

	outcome := o.runEtcd(ctx)
	o.report(ctx, outcome)
	return outcome
}

// RunCA executes the certificate-authority archive pipeline and
// reports the outcome to the monitoring webhook.
func (o *Orchestrator) RunCA(ctx context.Context) Outcome {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Run)
	defer cancel()

	outcome := o.runCA(ctx)
	o.report(ctx, outcome)
	return outcome
}

func (o *Orchestrator) report(ctx context.Context, outcome Outcome) {
	if o.cfg.DryRun || o.reporter == nil {
		return
	}
	// the run deadline must not cut off the final status report
	o.reporter.Ping(context.WithoutCancel(ctx), outcome.Status)
}

func (o *Orchestrator) runEtcd(ctx context.Context) Outcome {
	endpoint, health := o.probeCluster(ctx)
	if health == etcd.Unhealthy && o.cfg.Etcd.OnlineOnly {
		return Outcome{
			Kind:   OutcomeFailed,
			Err:    errors.NewClusterError("no healthy etcd endpoint and online-only mode is set", nil),
			Status: notify.StatusClusterUnhealthy,
		}
	}

	now := o.now()
	if o.suppress.RecentBackupExists(ctx, now, "-snapshot.db") {
		return Skipped("another node uploaded a recent snapshot", notify.StatusBackupExists)
	}

	name := EtcdSnapshotName(o.cfg.ClusterName, now, health)
	if o.cfg.DryRun {
		o.logger.Infof("Dry run: would snapshot, encrypt, and upload %s", name)
		return Skipped("dry run", notify.StatusSuccess)
	}

	if err := os.MkdirAll(o.cfg.Etcd.BackupDir, 0o755); err != nil {
		return Failed(errors.NewSnapshotError(
			fmt.Sprintf("failed to create backup directory %s", o.cfg.Etcd.BackupDir), err))
	}

	localPath := filepath.Join(o.cfg.Etcd.BackupDir, name)

	if err := o.acquireSnapshot(ctx, endpoint, health, localPath); err != nil {
		return Failed(err)
	}

	// a corrupt snapshot must be caught before encryption, whichever
	// way it was acquired
	if err := o.etcd.SnapshotStatus(ctx, localPath); err != nil {
		os.Remove(localPath)
		return Failed(err)
	}

	digest, err := o.engine.FileDigest(localPath)
	if err != nil {
		o.cleanupArtifacts(localPath)
		return Failed(err)
	}
	o.logger.WithFields(map[string]interface{}{
		"snapshot": name,
		"checksum": digest,
		"state":    health.Infix(),
	}).Info("Snapshot acquired")

	metadata := map[string]string{
		"backup-timestamp":   now.Format(TimestampFormat),
		"snapshot-checksum":  digest,
		"encrypted-checksum": "",
	}
	if err := o.publish(ctx, publication{
		localRaw:   localPath,
		rawDigest:  digest,
		name:       name,
		ts:         now,
		backupType: "etcd",
		metadata:   metadata,
		latestName: LatestSnapshotName,
	}); err != nil {
		return Failed(err)
	}

	o.refreshLocalCopy(localPath)
	o.sweeper.Sweep(o.cfg.Etcd.BackupDir, now,
		"*-snapshot.db", "*-snapshot.db.enc", "*-snapshot.db.kms", "*.sha256")
	return Completed()
}

func (o *Orchestrator) runCA(ctx context.Context) Outcome {
	secretsDigest, err := o.engine.TreeDigest(o.cfg.CA.SecretsDir)
	if err != nil {
		return Failed(err)
	}
	configDigest, err := o.engine.TreeDigest(o.cfg.CA.ConfigDir)
	if err != nil {
		return Failed(err)
	}
	combined := o.engine.CombineTrees(secretsDigest, configDigest)

	state := NewChangeState(o.cfg.StateDir, "ca-backup")
	last, err := state.Last()
	if err != nil {
		o.logger.Warnf("Failed to read change state, assuming changed: %v", err)
	}
	if last == combined && !o.cfg.CA.Force {
		o.logger.Info("CA material unchanged since last verified backup")
		return Skipped("source material unchanged", notify.StatusNoChanges)
	}

	now := o.now()
	if o.suppress.RecentBackupExists(ctx, now, "ca-backup-") {
		return Skipped("another node uploaded a recent CA backup", notify.StatusBackupExists)
	}

	name := CAArchiveName(now)
	if o.cfg.DryRun {
		o.logger.Infof("Dry run: would archive, encrypt, and upload %s", name)
		return Skipped("dry run", notify.StatusSuccess)
	}

	if err := os.MkdirAll(o.cfg.CA.BackupDir, 0o755); err != nil {
		return Failed(errors.NewArchiveError(
			fmt.Sprintf("failed to create backup directory %s", o.cfg.CA.BackupDir), err))
	}

	localPath := filepath.Join(o.cfg.CA.BackupDir, name)

	sources := map[string]string{
		"secrets": o.cfg.CA.SecretsDir,
		"config":  o.cfg.CA.ConfigDir,
	}
	if err := o.archiver.Create(ctx, localPath, sources); err != nil {
		return Failed(err)
	}
	if err := o.archiver.Verify(localPath); err != nil {
		os.Remove(localPath)
		return Failed(err)
	}

	digest, err := o.engine.FileDigest(localPath)
	if err != nil {
		o.cleanupArtifacts(localPath)
		return Failed(err)
	}

	metadata := map[string]string{
		"backup-timestamp":   now.Format(TimestampFormat),
		"original-checksum":  digest,
		"encrypted-checksum": "",
	}
	if err := o.publish(ctx, publication{
		localRaw:   localPath,
		rawDigest:  digest,
		name:       name,
		ts:         now,
		backupType: "ca",
		metadata:   metadata,
		latestName: LatestCAName,
	}); err != nil {
		return Failed(err)
	}

	// only a verified upload may arm the no-change suppression
	if err := state.Record(combined); err != nil {
		o.logger.Warnf("Failed to record change state: %v", err)
	}

	o.sweeper.Sweep(o.cfg.CA.BackupDir, now, "ca-backup-*.tar.gz*")
	return Completed()
}

// probeCluster checks the first configured endpoint. A failed probe
// means the snapshot falls back to an offline copy of the data
// directory; it never aborts the run by itself.
func (o *Orchestrator) probeCluster(ctx context.Context) (string, etcd.HealthState) {
	if len(o.cfg.Etcd.Endpoints) == 0 {
		return "", etcd.Unhealthy
	}
	endpoint := o.cfg.Etcd.Endpoints[0]
	probeCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Health)
	defer cancel()

	if err := o.etcd.Health(probeCtx, endpoint); err != nil {
		o.logger.Warnf("Endpoint %s failed health check: %v", endpoint, err)
		return "", etcd.Unhealthy
	}
	o.logger.Debugf("Endpoint %s is healthy", endpoint)
	return endpoint, etcd.Healthy
}

func (o *Orchestrator) acquireSnapshot(ctx context.Context, endpoint string, health etcd.HealthState, destPath string) error {
	if health == etcd.Healthy {
		snapCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Snapshot)
		defer cancel()
		return o.etcd.SnapshotSave(snapCtx, endpoint, destPath)
	}

	matches, err := filepath.Glob(o.cfg.Etcd.DataDirGlob)
	if err != nil || len(matches) == 0 {
		return errors.NewSnapshotError(
			fmt.Sprintf("no etcd data file matches %s for offline copy", o.cfg.Etcd.DataDirGlob), err)
	}
	o.logger.Warnf("Cluster offline, copying data file %s", matches[0])
	if err := copyFile(matches[0], destPath); err != nil {
		return errors.NewSnapshotError("failed to copy offline data file", err)
	}
	return nil
}

// publication describes one verified artifact on its way to the store
type publication struct {
	localRaw   string
	rawDigest  string
	name       string
	ts         time.Time
	backupType string
	metadata   map[string]string
	latestName string
}

// publish encrypts an artifact, uploads it with its checksum sidecar,
// verifies the stored copy by downloading and re-hashing it, then
// writes the best-effort latest pointer and tags. Any fatal step
// removes the local artifacts so a retry starts clean.
func (o *Orchestrator) publish(ctx context.Context, pub publication) error {
	uploadLocal := pub.localRaw
	uploadName := pub.name

	if o.enc.Suffix() != "" {
		uploadLocal = pub.localRaw + o.enc.Suffix()
		uploadName = pub.name + o.enc.Suffix()

		if err := o.enc.Encrypt(ctx, pub.localRaw, uploadLocal); err != nil {
			os.Remove(pub.localRaw)
			os.Remove(uploadLocal)
			return err
		}
		if info, err := os.Stat(uploadLocal); err != nil || info.Size() == 0 {
			o.cleanupArtifacts(pub.localRaw, uploadLocal)
			return errors.NewEncryptionError(
				fmt.Sprintf("encryption produced no output for %s", pub.name), err)
		}
		if err := o.enc.Validate(ctx, uploadLocal, pub.rawDigest); err != nil {
			os.Remove(pub.localRaw)
			os.Remove(uploadLocal)
			return err
		}
	}

	uploadDigest, err := o.engine.FileDigest(uploadLocal)
	if err != nil {
		o.cleanupArtifacts(pub.localRaw, uploadLocal)
		return err
	}
	if _, ok := pub.metadata["encrypted-checksum"]; ok {
		pub.metadata["encrypted-checksum"] = uploadDigest
	}

	remotePath := RemotePath(o.cfg.Storage.Prefix, pub.ts, uploadName)
	if err := o.storePut(ctx, uploadLocal, remotePath, pub.metadata); err != nil {
		o.cleanupArtifacts(pub.localRaw, uploadLocal)
		return err
	}

	// the sidecar records the plaintext digest so a restored artifact
	// can be checked with sha256sum after decryption
	sidecarPath, err := checksum.WriteSidecar(pub.localRaw, pub.rawDigest)
	if err != nil {
		o.logger.Warnf("Failed to write checksum sidecar: %v", err)
	} else if err := o.storePut(ctx, sidecarPath, remotePath+checksum.SidecarSuffix, nil); err != nil {
		o.logger.Warnf("Failed to upload checksum sidecar: %v", err)
	}

	if err := o.verifyUpload(ctx, remotePath, uploadDigest); err != nil {
		o.cleanupArtifacts(pub.localRaw, uploadLocal, sidecarPath)
		return err
	}
	o.logger.WithField("remote", remotePath).Info("Upload verified against stored copy")

	o.publishLatest(ctx, pub, uploadLocal, remotePath)

	// the raw timestamped artifact stays for local restores, the
	// encrypted copy and sidecar have served their purpose
	if uploadLocal != pub.localRaw {
		os.Remove(uploadLocal)
	}
	if sidecarPath != "" {
		os.Remove(sidecarPath)
	}
	return nil
}

func (o *Orchestrator) publishLatest(ctx context.Context, pub publication, uploadLocal, remotePath string) {
	latestRemote := LatestPath(o.cfg.Storage.Prefix, pub.latestName+o.enc.Suffix())
	latestMeta := make(map[string]string, len(pub.metadata)+1)
	for k, v := range pub.metadata {
		latestMeta[k] = v
	}
	latestMeta["retention"] = "long-term"
	if err := o.storePut(ctx, uploadLocal, latestRemote, latestMeta); err != nil {
		o.logger.Warnf("Failed to publish latest pointer %s: %v", latestRemote, err)
		return
	}

	// the latest sidecar names the pointer itself so a downloaded copy
	// still passes sha256sum -c after decryption
	latestSidecar, err := checksum.WriteSidecar(
		filepath.Join(filepath.Dir(pub.localRaw), pub.latestName), pub.rawDigest)
	if err != nil {
		o.logger.Warnf("Failed to write latest checksum sidecar: %v", err)
	} else {
		if err := o.storePut(ctx, latestSidecar, latestRemote+checksum.SidecarSuffix, nil); err != nil {
			o.logger.Warnf("Failed to publish latest sidecar: %v", err)
		}
		os.Remove(latestSidecar)
	}

	tags := ArtifactTags(pub.backupType, o.cfg.ClusterName, pub.ts)
	for _, key := range []string{remotePath, latestRemote} {
		if err := o.store.Tag(ctx, key, tags); err != nil {
			o.logger.Warnf("Failed to tag %s: %v", key, err)
		}
	}
}

func (o *Orchestrator) storePut(ctx context.Context, localPath, remotePath string, metadata map[string]string) error {
	putCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Storage)
	defer cancel()

	start := o.now()
	err := o.store.Put(putCtx, localPath, remotePath, metadata)
	if info, statErr := os.Stat(localPath); statErr == nil {
		o.logger.LogUpload(remotePath, info.Size(), time.Since(start), err)
	}
	return err
}

// verifyUpload confirms the stored object exists and that downloading
// it back reproduces the uploaded bytes.
func (o *Orchestrator) verifyUpload(ctx context.Context, remotePath, expectedDigest string) error {
	headCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Storage)
	exists, err := o.store.HeadExists(headCtx, remotePath)
	cancel()
	if err != nil {
		return errors.NewValidationError(
			fmt.Sprintf("failed to confirm uploaded object %s", remotePath), err)
	}
	if !exists {
		return errors.NewValidationError(
			fmt.Sprintf("uploaded object %s not found in store", remotePath), nil)
	}

	scratch, err := os.CreateTemp("", "backup-verify-*")
	if err != nil {
		return errors.NewValidationError("failed to create verification scratch file", err)
	}
	scratch.Close()
	defer os.Remove(scratch.Name())

	getCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Storage)
	err = o.store.Get(getCtx, remotePath, scratch.Name())
	cancel()
	if err != nil {
		return errors.NewValidationError(
			fmt.Sprintf("failed to download %s for verification", remotePath), err)
	}

	digest, err := o.engine.FileDigest(scratch.Name())
	if err != nil {
		return err
	}
	if digest != expectedDigest {
		return errors.NewValidationError(
			fmt.Sprintf("stored copy of %s does not match uploaded checksum", remotePath), nil).
			WithContext("expected", expectedDigest).
			WithContext("actual", digest)
	}
	return nil
}

func (o *Orchestrator) refreshLocalCopy(snapshotPath string) {
	copyPath := filepath.Join(o.cfg.Etcd.BackupDir, LocalCopyName(o.cfg.ClusterName))
	if err := copyFile(snapshotPath, copyPath); err != nil {
		o.logger.Warnf("Failed to refresh local snapshot copy: %v", err)
		return
	}
	o.logger.Debugf("Refreshed local snapshot copy %s", copyPath)
}

func (o *Orchestrator) cleanupArtifacts(paths ...string) {
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok || p == "" {
			continue
		}
		seen[p] = struct{}{}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			o.logger.Warnf("Failed to clean up %s: %v", p, err)
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
