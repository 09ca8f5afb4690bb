// validation.go - startup validation so misconfiguration fails fast with a
// readable list of problems rather than at the first request.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validator accumulates validation errors.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{errors: make([]ValidationError, 0)}
}

func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// ErrorString returns a numbered list of all errors.
func (v *Validator) ErrorString() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n", len(v.errors)))
	for i, err := range v.errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

func (v *Validator) Required(field, value string) {
	if value == "" {
		v.AddError(field, "required setting not set")
	}
}

// URL checks value is an absolute http(s) URL. Empty values are skipped.
func (v *Validator) URL(field, value string) {
	if value == "" {
		return
	}
	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid URL format: %v", err))
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		v.AddError(field, "URL must use http or https scheme")
		return
	}
	if parsed.Host == "" {
		v.AddError(field, "URL must include a host")
	}
}

// Port accepts ":8080", "8080" or "host:8080".
func (v *Validator) Port(field, value string) {
	if value == "" {
		return
	}
	portStr := value
	if i := strings.LastIndex(value, ":"); i >= 0 {
		portStr = value[i+1:]
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		v.AddError(field, "port must be a number")
		return
	}
	if port < 1 || port > 65535 {
		v.AddError(field, "port must be between 1 and 65535")
	}
}

func (v *Validator) Enum(field, value string, allowed []string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// Validate checks every setting and returns all problems at once.
func (c *Config) Validate() error {
	v := NewValidator()

	v.Required("database_url", c.DatabaseURL)
	if c.DatabaseURL != "" &&
		!strings.HasPrefix(c.DatabaseURL, "postgres://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		v.AddError("database_url", "must be a valid PostgreSQL connection string")
	}

	v.Port("addr", c.Addr)
	v.Enum("log_level", c.LogLevel, []string{"debug", "info", "warn", "error"})
	v.Enum("log_format", c.LogFormat, []string{"json", "text"})
	v.Enum("env", c.Env, []string{"development", "staging", "production"})

	if c.MaxUploadBytes < 0 {
		v.AddError("max_upload_bytes", "must not be negative")
	}
	if c.HealthRetention <= 0 {
		v.AddError("health_retention", "must be a positive duration")
	}
	if c.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(c.CleanupSchedule); err != nil {
			v.AddError("cleanup_schedule", fmt.Sprintf("invalid cron expression: %v", err))
		}
	}

	v.URL("public_base_url", c.Storage.PublicBaseURL)
	c.Storage.validate(v)

	if v.HasErrors() {
		return errors.New(v.ErrorString())
	}
	return nil
}

func (s StorageConfig) validate(v *Validator) {
	v.Enum("storage_backend", s.Backend, []string{BackendMinIO, BackendS3, BackendGCS})
	v.Required("bucket", s.Bucket)

	switch s.Backend {
	case BackendMinIO:
		v.Required("s3_endpoint", s.Endpoint)
		v.Required("s3_access_key", s.AccessKey)
		v.Required("s3_secret_key", s.SecretKey)
		if strings.Contains(s.Endpoint, "://") {
			v.URL("s3_endpoint", s.Endpoint)
		}
	case BackendS3:
		v.Required("s3_region", s.Region)
		v.URL("s3_endpoint", s.Endpoint)
		if (s.AccessKey == "") != (s.SecretKey == "") {
			v.AddError("s3_access_key", "s3_access_key and s3_secret_key must be set together")
		}
	case BackendGCS:
		v.URL("gcs_endpoint", s.GCSEndpoint)
	}
}
