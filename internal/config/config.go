package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"etcd-backup-agent/internal/errors"
)

// Config is the complete agent configuration. It is built once at
// startup, validated, and passed by value to component constructors.
type Config struct {
	ClusterName string `mapstructure:"cluster_name"`

	Etcd         EtcdConfig         `mapstructure:"etcd"`
	CA           CAConfig           `mapstructure:"ca"`
	Encryption   EncryptionConfig   `mapstructure:"encryption"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Coordination CoordinationConfig `mapstructure:"coordination"`
	Retention    RetentionConfig    `mapstructure:"retention"`
	Notify       NotifyConfig       `mapstructure:"notify"`
	Timeouts     TimeoutConfig      `mapstructure:"timeouts"`

	// StateDir holds the change-state files used for no-change
	// suppression. Created with mode 0700 on first use.
	StateDir string `mapstructure:"state_dir"`

	DryRun    bool   `mapstructure:"dry_run"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
}

// EtcdConfig holds settings for the etcd backup path
type EtcdConfig struct {
	Endpoints   []string `mapstructure:"endpoints"`
	CACert      string   `mapstructure:"ca_cert"`
	CertFile    string   `mapstructure:"cert_file"`
	KeyFile     string   `mapstructure:"key_file"`
	BackupDir   string   `mapstructure:"backup_dir"`
	DataDirGlob string   `mapstructure:"data_dir_glob"`
	OnlineOnly  bool     `mapstructure:"online_only"`
}

// CAConfig holds settings for the certificate-authority backup path
type CAConfig struct {
	SecretsDir string `mapstructure:"secrets_dir"`
	ConfigDir  string `mapstructure:"config_dir"`
	BackupDir  string `mapstructure:"backup_dir"`
	Force      bool   `mapstructure:"force"`
}

// EncryptionConfig selects and parameterizes the encryption backend
type EncryptionConfig struct {
	Method       string `mapstructure:"method"` // none, symmetric, kms
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"password_file"`
	KMSKeyID     string `mapstructure:"kms_key_id"`
	KMSRegion    string `mapstructure:"kms_region"`
}

// StorageConfig selects and parameterizes the object store provider
type StorageConfig struct {
	Provider string `mapstructure:"provider"` // s3, gcs, azure
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`

	// S3
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"`

	// GCS
	CredentialsFile string `mapstructure:"credentials_file"`
	ProjectID       string `mapstructure:"project_id"`

	// Azure
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
}

// CoordinationConfig controls cross-node duplicate suppression
type CoordinationConfig struct {
	Distributed   bool `mapstructure:"distributed"`
	Independent   bool `mapstructure:"independent"`
	WindowMinutes int  `mapstructure:"window_minutes"`
}

// RetentionConfig controls local artifact cleanup
type RetentionConfig struct {
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// NotifyConfig holds the notification webhook settings
type NotifyConfig struct {
	PingURL    string        `mapstructure:"ping_url"`
	APIKey     string        `mapstructure:"api_key"`
	APIBaseURL string        `mapstructure:"api_base_url"`
	ChecksFile string        `mapstructure:"checks_file"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// TimeoutConfig bounds every external call and the run as a whole
type TimeoutConfig struct {
	Health   time.Duration `mapstructure:"health"`
	Snapshot time.Duration `mapstructure:"snapshot"`
	Storage  time.Duration `mapstructure:"storage"`
	Run      time.Duration `mapstructure:"run"`
}

// EncryptionPassword resolves the symmetric passphrase from the inline
// value or the password file, in that order.
func (c *Config) EncryptionPassword() (string, error) {
	if c.Encryption.Password != "" {
		return c.Encryption.Password, nil
	}
	if c.Encryption.PasswordFile != "" {
		data, err := os.ReadFile(c.Encryption.PasswordFile)
		if err != nil {
			return "", errors.NewConfigurationError(
				fmt.Sprintf("failed to read password file %s", c.Encryption.PasswordFile), err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", errors.NewConfigurationError("symmetric encryption requires a password or password file", nil)
}

// Validate checks the configuration for required fields and valid enum
// values. It is called once before the pipeline starts.
func (c *Config) Validate() error {
	if c.ClusterName == "" {
		return errors.NewConfigurationError("cluster_name is required", nil)
	}

	switch c.Encryption.Method {
	case "none", "symmetric", "kms":
	case "":
		return errors.NewConfigurationError("encryption.method is required (none, symmetric, kms)", nil)
	default:
		return errors.NewConfigurationError(
			fmt.Sprintf("invalid encryption method %q, must be one of: none, symmetric, kms", c.Encryption.Method), nil)
	}

	if c.Encryption.Method == "symmetric" {
		if c.Encryption.Password == "" && c.Encryption.PasswordFile == "" {
			return errors.NewConfigurationError("symmetric encryption requires encryption.password or encryption.password_file", nil)
		}
	}
	if c.Encryption.Method == "kms" && c.Encryption.KMSKeyID == "" {
		return errors.NewConfigurationError("kms encryption requires encryption.kms_key_id", nil)
	}

	switch c.Storage.Provider {
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.NewConfigurationError("s3 storage requires storage.bucket", nil)
		}
		if c.Storage.Region == "" {
			return errors.NewConfigurationError("s3 storage requires storage.region", nil)
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return errors.NewConfigurationError("gcs storage requires storage.bucket", nil)
		}
	case "azure":
		if c.Storage.AccountName == "" || c.Storage.Container == "" {
			return errors.NewConfigurationError("azure storage requires storage.account_name and storage.container", nil)
		}
	case "":
		return errors.NewConfigurationError("storage.provider is required (s3, gcs, azure)", nil)
	default:
		return errors.NewConfigurationError(
			fmt.Sprintf("invalid storage provider %q, must be one of: s3, gcs, azure", c.Storage.Provider), nil)
	}

	if c.Coordination.WindowMinutes < 0 {
		return errors.NewConfigurationError("coordination.window_minutes must not be negative", nil)
	}
	if c.Retention.MaxAgeDays < 0 {
		return errors.NewConfigurationError("retention.max_age_days must not be negative", nil)
	}

	for _, tc := range []struct {
		name string
		d    time.Duration
	}{
		{"timeouts.health", c.Timeouts.Health},
		{"timeouts.snapshot", c.Timeouts.Snapshot},
		{"timeouts.storage", c.Timeouts.Storage},
		{"timeouts.run", c.Timeouts.Run},
	} {
		if tc.d <= 0 {
			return errors.NewConfigurationError(fmt.Sprintf("%s must be greater than 0", tc.name), nil)
		}
	}

	return nil
}

// ValidateEtcd checks the fields only the etcd backup path needs
func (c *Config) ValidateEtcd() error {
	if len(c.Etcd.Endpoints) == 0 {
		return errors.NewConfigurationError("etcd.endpoints is required", nil)
	}
	if c.Etcd.BackupDir == "" {
		return errors.NewConfigurationError("etcd.backup_dir is required", nil)
	}
	return nil
}

// ValidateCA checks the fields only the CA backup path needs
func (c *Config) ValidateCA() error {
	if c.CA.SecretsDir == "" || c.CA.ConfigDir == "" {
		return errors.NewConfigurationError("ca.secrets_dir and ca.config_dir are required", nil)
	}
	if c.CA.BackupDir == "" {
		return errors.NewConfigurationError("ca.backup_dir is required", nil)
	}
	return nil
}
