// Package config loads filedrop settings from the environment and an
// optional config file.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "FD"

// Storage backends.
const (
	BackendMinIO = "minio"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
)

type Config struct {
	Addr        string `mapstructure:"addr"`
	DatabaseURL string `mapstructure:"database_url"`
	Env         string `mapstructure:"env"`
	Version     string `mapstructure:"version"`
	Commit      string `mapstructure:"commit"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`

	HealthRetention time.Duration `mapstructure:"health_retention"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`

	Storage StorageConfig `mapstructure:",squash"`
}

// StorageConfig selects and configures the object store backend.
type StorageConfig struct {
	Backend       string `mapstructure:"storage_backend"`
	Bucket        string `mapstructure:"bucket"`
	PublicBaseURL string `mapstructure:"public_base_url"`

	// MinIO and S3.
	Endpoint  string `mapstructure:"s3_endpoint"`
	AccessKey string `mapstructure:"s3_access_key"`
	SecretKey string `mapstructure:"s3_secret_key"`
	Region    string `mapstructure:"s3_region"`

	// GCS.
	GCSCredentialsFile string `mapstructure:"gcs_credentials_file"`
	GCSEndpoint        string `mapstructure:"gcs_endpoint"`
}

var keys = []string{
	"addr", "database_url", "env", "version", "commit",
	"log_level", "log_format", "max_upload_bytes",
	"health_retention", "cleanup_schedule",
	"storage_backend", "bucket", "public_base_url",
	"s3_endpoint", "s3_access_key", "s3_secret_key", "s3_region",
	"gcs_credentials_file", "gcs_endpoint",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("env", "development")
	v.SetDefault("version", "dev")
	v.SetDefault("commit", "unknown")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("max_upload_bytes", 0)
	v.SetDefault("health_retention", "168h")
	v.SetDefault("cleanup_schedule", "@hourly")
	v.SetDefault("storage_backend", BackendMinIO)
	v.SetDefault("s3_region", "us-east-1")
}

// Load reads FD_* environment variables, then the file at path when path is
// non-empty. Environment values win over file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env values for keys viper already knows about.
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, errors.Wrapf(err, "bind env %s", k)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize trims whitespace and lowercases enum-like values.
func (c *Config) Normalize() {
	c.Addr = strings.TrimSpace(c.Addr)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.CleanupSchedule = strings.TrimSpace(c.CleanupSchedule)

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
}
