package notify

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"etcd-backup-agent/internal/config"
	"etcd-backup-agent/internal/logging"
)

// Status is the terminal outcome reported to the monitoring webhook
type Status string

const (
	StatusSuccess          Status = "success"
	StatusFailure          Status = "failure"
	StatusNoChanges        Status = "no-changes"
	StatusBackupExists     Status = "backup-exists"
	StatusClusterUnhealthy Status = "cluster-unhealthy"
)

// Pinger reports run outcomes to a monitoring webhook. Sends are
// fire-and-forget with bounded retries; a failed ping never changes
// the run's own exit code.
type Pinger struct {
	pingURL string
	client  *retryablehttp.Client
	logger  *logging.Logger
}

// NewPinger creates a webhook pinger. An empty URL disables pings.
func NewPinger(cfg config.NotifyConfig, logger *logging.Logger) *Pinger {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.RetryWaitMin = time.Second
	client.RetryWaitMax = 10 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil

	return &Pinger{
		pingURL: cfg.PingURL,
		client:  client,
		logger:  logger,
	}
}

// Ping reports a run status. Errors are logged, never returned as
// fatal to the caller.
func (p *Pinger) Ping(ctx context.Context, status Status) {
	if p.pingURL == "" {
		p.logger.Debug("No ping URL configured, skipping notification")
		return
	}

	pingURL := fmt.Sprintf("%s?status=%s", p.pingURL, url.QueryEscape(string(status)))

	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", pingURL, nil)
	if err != nil {
		p.logger.Warnf("Failed to build notification request: %v", err)
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warnf("Failed to send %s notification: %v", status, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		p.logger.Warnf("Notification endpoint returned %d for status %s", resp.StatusCode, status)
		return
	}

	p.logger.Debugf("Reported status %s", status)
}
