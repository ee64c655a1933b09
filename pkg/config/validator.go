package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Server config
	if c.Server.Addr == "" {
		errors = append(errors, ValidationError{
			Field:   "server.addr",
			Message: "listen address is required",
		})
	}

	if c.Server.UploadDir == "" {
		errors = append(errors, ValidationError{
			Field:   "server.upload_dir",
			Message: "upload directory is required",
		})
	}

	if c.Server.MaxUploadMB < 1 {
		errors = append(errors, ValidationError{
			Field:   "server.max_upload_mb",
			Message: "max_upload_mb must be positive",
		})
	}

	if c.Server.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate Tools config
	if c.Tools.ConverterScript == "" {
		errors = append(errors, ValidationError{
			Field:   "tools.converter_script",
			Message: "converter script path is required",
		})
	}

	if c.Tools.ClassifierScript == "" {
		errors = append(errors, ValidationError{
			Field:   "tools.classifier_script",
			Message: "classifier script path is required",
		})
	}

	if c.Tools.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "tools.timeout_seconds",
			Message: "timeout_seconds must be positive",
		})
	}

	if c.Tools.NumPoints < 1 || c.Tools.NumPoints > 65536 {
		errors = append(errors, ValidationError{
			Field:   "tools.num_points",
			Message: "num_points must be between 1 and 65536",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	// Validate Cache config
	if c.Cache.Addr != "" && c.Cache.TTLSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "cache.ttl_seconds",
			Message: "ttl_seconds must be positive",
		})
	}

	return errors
}
