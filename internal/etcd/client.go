package etcd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"etcd-backup-agent/internal/config"
	"etcd-backup-agent/internal/errors"
	"etcd-backup-agent/internal/logging"
)

// HealthState is the cluster health derived once per run
type HealthState string

const (
	// Healthy means the cluster answered the health probe
	Healthy HealthState = "healthy"
	// Unhealthy means the probe failed or errored
	Unhealthy HealthState = "unhealthy"
)

// Infix returns the artifact-name infix for this health state
func (h HealthState) Infix() string {
	if h == Healthy {
		return "online"
	}
	return "offline"
}

// Client is the surface the pipeline needs from the protected service
type Client interface {
	// Health probes a single endpoint. Returns nil when the endpoint
	// reports healthy.
	Health(ctx context.Context, endpoint string) error

	// SnapshotSave exports a live snapshot from endpoint to destPath
	SnapshotSave(ctx context.Context, endpoint, destPath string) error

	// SnapshotStatus runs an integrity check against a snapshot file
	SnapshotStatus(ctx context.Context, path string) error
}

// Runner executes an external command and returns its combined output
type Runner interface {
	Run(ctx context.Context, name string, env []string, args ...string) ([]byte, error)
}

// execRunner runs real processes
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, env []string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

// ExecClient drives the etcdctl and etcdutl binaries. The agent runs
// on the cluster node itself, so the binaries and peer certificates
// are always local.
type ExecClient struct {
	cfg    config.EtcdConfig
	runner Runner
	logger *logging.Logger
}

// NewExecClient creates a client using the system etcdctl/etcdutl
func NewExecClient(cfg config.EtcdConfig, logger *logging.Logger) *ExecClient {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &ExecClient{cfg: cfg, runner: execRunner{}, logger: logger}
}

// NewExecClientWithRunner creates a client with a custom runner
func NewExecClientWithRunner(cfg config.EtcdConfig, runner Runner, logger *logging.Logger) *ExecClient {
	c := NewExecClient(cfg, logger)
	c.runner = runner
	return c
}

func (c *ExecClient) tlsArgs() []string {
	var args []string
	if c.cfg.CACert != "" {
		args = append(args, "--cacert="+c.cfg.CACert)
	}
	if c.cfg.CertFile != "" {
		args = append(args, "--cert="+c.cfg.CertFile)
	}
	if c.cfg.KeyFile != "" {
		args = append(args, "--key="+c.cfg.KeyFile)
	}
	return args
}

// Health probes a single endpoint via `etcdctl endpoint health`
func (c *ExecClient) Health(ctx context.Context, endpoint string) error {
	args := append([]string{"endpoint", "health", "--endpoints=" + endpoint}, c.tlsArgs()...)

	out, err := c.runner.Run(ctx, "etcdctl", []string{"ETCDCTL_API=3"}, args...)
	if err != nil {
		return errors.NewClusterError(
			fmt.Sprintf("health probe failed for %s: %s", endpoint, strings.TrimSpace(string(out))), err)
	}

	c.logger.Debugf("Endpoint %s healthy: %s", endpoint, strings.TrimSpace(string(out)))
	return nil
}

// SnapshotSave exports a live snapshot via `etcdctl snapshot save`
func (c *ExecClient) SnapshotSave(ctx context.Context, endpoint, destPath string) error {
	args := append([]string{"snapshot", "save", destPath, "--endpoints=" + endpoint}, c.tlsArgs()...)

	out, err := c.runner.Run(ctx, "etcdctl", []string{"ETCDCTL_API=3"}, args...)
	if err != nil {
		return errors.NewSnapshotError(
			fmt.Sprintf("snapshot save from %s failed: %s", endpoint, strings.TrimSpace(string(out))), err)
	}
	return nil
}

// SnapshotStatus checks snapshot integrity via `etcdutl snapshot status`
func (c *ExecClient) SnapshotStatus(ctx context.Context, path string) error {
	out, err := c.runner.Run(ctx, "etcdutl", nil, "snapshot", "status", path)
	if err != nil {
		return errors.NewCorruptionError(
			fmt.Sprintf("snapshot status check failed for %s: %s", path, strings.TrimSpace(string(out))), err)
	}

	c.logger.Debugf("Snapshot %s status: %s", path, strings.TrimSpace(string(out)))
	return nil
}
