package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"etcd-backup-agent/internal/errors"
)

// Load reads the agent configuration from the given file, applies
// defaults and environment overrides, and returns an unvalidated
// Config. Call Validate before using it.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("etcd-backup-agent")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/etcd-backup-agent")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ETCD_BACKUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing implicit config file is fine, the defaults and
		// environment still apply. An explicit path must exist.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, errors.NewConfigurationError("failed to read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigurationError("failed to unmarshal configuration", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("state_dir", "/var/lib/etcd-backup-agent")
	v.SetDefault("log_level", "normal")
	v.SetDefault("log_format", "text")

	v.SetDefault("etcd.backup_dir", "/var/backups/etcd")
	v.SetDefault("etcd.data_dir_glob", "/var/lib/etcd*/member/snap/db")

	v.SetDefault("ca.backup_dir", "/var/backups/ca")

	v.SetDefault("encryption.method", "none")

	v.SetDefault("storage.prefix", "backups")

	v.SetDefault("coordination.window_minutes", 60)
	v.SetDefault("retention.max_age_days", 14)

	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("notify.max_retries", 3)
	v.SetDefault("notify.api_base_url", "https://healthchecks.io/api/v3")

	v.SetDefault("timeouts.health", 30*time.Second)
	v.SetDefault("timeouts.snapshot", 10*time.Minute)
	v.SetDefault("timeouts.storage", 15*time.Minute)
	v.SetDefault("timeouts.run", 55*time.Minute)
}
