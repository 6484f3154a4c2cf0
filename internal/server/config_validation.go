// config_validation.go - Startup validation so a bad setting fails fast with
// every problem listed at once.
package server

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"socket-file-drop/internal/store"
)

// ConfigValidationError represents a configuration validation error.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ConfigValidator collects validation errors.
type ConfigValidator struct {
	errors []ConfigValidationError
}

// NewConfigValidator creates a new configuration validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		errors: make([]ConfigValidationError, 0),
	}
}

// AddError adds a validation error.
func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *ConfigValidator) Errors() []ConfigValidationError {
	return v.errors
}

// ErrorString returns a formatted string of all errors.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidateRequired records an error when value is blank.
func (v *ConfigValidator) ValidateRequired(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "required setting not set")
	}
}

// ValidatePort validates that port is a usable TCP port.
func (v *ConfigValidator) ValidatePort(field string, port int) {
	if port < 1 || port > 65535 {
		v.AddError(field, "port must be between 1 and 65535")
	}
}

// ValidateURL validates that a value is an http or https URL.
func (v *ConfigValidator) ValidateURL(field, value string) {
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
	}
}

// ValidateEnum validates that a value is one of allowed options.
func (v *ConfigValidator) ValidateEnum(field, value string, allowed []string) {
	if value == "" {
		return
	}

	for _, opt := range allowed {
		if value == opt {
			return
		}
	}

	v.AddError(field, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// Validate checks the resolved settings.
func (c Config) Validate() error {
	v := NewConfigValidator()

	v.ValidateRequired("host", c.Host)
	v.ValidatePort("port", c.Port)
	v.ValidateRequired("static_folder", c.StaticRoot)
	v.ValidateRequired("upload_folder", c.UploadRoot)
	v.ValidateRequired("token", c.Token)

	if c.ReadTimeout < 0 {
		v.AddError("read_timeout", "must not be negative")
	}

	if c.DatabaseURL != "" &&
		!strings.HasPrefix(c.DatabaseURL, "postgres://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		v.AddError("database_url", "must be a valid PostgreSQL connection string")
	}

	m := c.MirrorConfig
	if m != (store.MirrorConfig{}) && !m.Enabled() {
		v.AddError("mirror", "endpoint, access_key, secret_key and bucket must all be set")
	}
	if strings.Contains(m.Endpoint, "://") {
		v.ValidateURL("mirror.endpoint", m.Endpoint)
	}

	v.ValidateEnum("SFD_LOG_FORMAT", os.Getenv("SFD_LOG_FORMAT"), []string{"json", "text"})
	v.ValidateEnum("SFD_LOG_LEVEL", os.Getenv("SFD_LOG_LEVEL"), []string{"debug", "info", "warn", "error"})

	if v.HasErrors() {
		return fmt.Errorf("%s", v.ErrorString())
	}
	return nil
}

// WarnOnOptionalMissingConfig logs which optional features are switched off.
func WarnOnOptionalMissingConfig(c Config, log *Logger) {
	warnings := make([]string, 0)

	if c.DatabaseURL == "" {
		warnings = append(warnings, "database_url not set - file event audit disabled")
	}
	if !c.MirrorConfig.Enabled() {
		warnings = append(warnings, "mirror not configured - uploads are kept on local disk only")
	}
	if os.Getenv("SFD_LOG_FORMAT") == "" {
		warnings = append(warnings, "SFD_LOG_FORMAT not set - using text format (consider 'json' for production)")
	}

	if len(warnings) > 0 {
		log.Info("configuration warnings", map[string]any{
			"count":    len(warnings),
			"warnings": warnings,
		})
	}
}
