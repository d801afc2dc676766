package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"gopkg.in/yaml.v3"

	"etcd-backup-agent/internal/config"
	"etcd-backup-agent/internal/errors"
	"etcd-backup-agent/internal/logging"
)

// CheckDefinition is one monitoring check described in the checks
// definitions file.
type CheckDefinition struct {
	Name     string `yaml:"name" json:"name"`
	Timeout  int    `yaml:"timeout" json:"timeout"`
	Grace    int    `yaml:"grace" json:"grace"`
	Schedule string `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	Tags     string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Channels string `yaml:"channels,omitempty" json:"channels,omitempty"`
}

// checksFile is the top-level shape of the definitions file
type checksFile struct {
	Checks []CheckDefinition `yaml:"checks"`
}

// Check is a check as reported by the monitoring API
type Check struct {
	Name    string `json:"name"`
	PingURL string `json:"ping_url"`
	Status  string `json:"status"`
	UUID    string `json:"uuid,omitempty"`
	Update  string `json:"update_url,omitempty"`
}

// ChecksClient is a thin CRUD wrapper over the monitoring service's
// REST API, used to register the agent's checks from a definitions
// file.
type ChecksClient struct {
	baseURL string
	apiKey  string
	client  *retryablehttp.Client
	logger  *logging.Logger
}

// NewChecksClient creates a monitoring API client
func NewChecksClient(cfg config.NotifyConfig, logger *logging.Logger) (*ChecksClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigurationError("check management requires notify.api_key", nil)
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.RetryWaitMin = time.Second
	client.RetryWaitMax = 10 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil

	return &ChecksClient{
		baseURL: cfg.APIBaseURL,
		apiKey:  cfg.APIKey,
		client:  client,
		logger:  logger,
	}, nil
}

func (c *ChecksClient) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.NewConfigurationError("failed to marshal check payload", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.NewConfigurationError("failed to build checks API request", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewStorageError("checks API request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewStorageError("failed to read checks API response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, errors.NewStorageError(
			fmt.Sprintf("checks API returned %d: %s", resp.StatusCode, string(data)), nil)
	}
	return data, nil
}

// List fetches all registered checks
func (c *ChecksClient) List(ctx context.Context) ([]Check, error) {
	data, err := c.do(ctx, http.MethodGet, "/checks/", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Checks []Check `json:"checks"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.NewStorageError("failed to decode checks API response", err)
	}
	return payload.Checks, nil
}

// Create registers a new check
func (c *ChecksClient) Create(ctx context.Context, def CheckDefinition) (*Check, error) {
	data, err := c.do(ctx, http.MethodPost, "/checks/", def)
	if err != nil {
		return nil, err
	}

	var check Check
	if err := json.Unmarshal(data, &check); err != nil {
		return nil, errors.NewStorageError("failed to decode created check", err)
	}
	return &check, nil
}

// Update modifies an existing check identified by its update URL path
func (c *ChecksClient) Update(ctx context.Context, uuid string, def CheckDefinition) (*Check, error) {
	data, err := c.do(ctx, http.MethodPost, "/checks/"+uuid, def)
	if err != nil {
		return nil, err
	}

	var check Check
	if err := json.Unmarshal(data, &check); err != nil {
		return nil, errors.NewStorageError("failed to decode updated check", err)
	}
	return &check, nil
}

// Delete removes a registered check by uuid
func (c *ChecksClient) Delete(ctx context.Context, uuid string) error {
	_, err := c.do(ctx, http.MethodDelete, "/checks/"+uuid, nil)
	return err
}

// LoadDefinitions parses the yaml checks definitions file
func LoadDefinitions(path string) ([]CheckDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("failed to read checks file %s", path), err)
	}

	var file checksFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("failed to parse checks file %s", path), err)
	}

	for i, def := range file.Checks {
		if def.Name == "" {
			return nil, errors.NewConfigurationError(fmt.Sprintf("check %d in %s has no name", i, path), nil)
		}
	}
	return file.Checks, nil
}

// Sync upserts every definition against the registered checks,
// matching by name. Existing checks are updated in place, missing
// ones created. Returns the ping URLs keyed by check name.
func (c *ChecksClient) Sync(ctx context.Context, defs []CheckDefinition) (map[string]string, error) {
	existing, err := c.List(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]Check, len(existing))
	for _, check := range existing {
		byName[check.Name] = check
	}

	pingURLs := make(map[string]string, len(defs))
	for _, def := range defs {
		if current, ok := byName[def.Name]; ok {
			updated, err := c.Update(ctx, current.UUID, def)
			if err != nil {
				return nil, err
			}
			c.logger.Infof("Updated check %s", def.Name)
			pingURLs[def.Name] = updated.PingURL
			continue
		}

		created, err := c.Create(ctx, def)
		if err != nil {
			return nil, err
		}
		c.logger.Infof("Created check %s", def.Name)
		pingURLs[def.Name] = created.PingURL
	}

	return pingURLs, nil
}
