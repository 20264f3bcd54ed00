package config

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/treestream/internal/sqlutil"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	// Validate catalog database
	if err := c.validateDatabase("catalog", &c.Catalog); err != nil {
		errors = append(errors, err...)
	}

	// Validate jobs
	if len(c.Jobs) == 0 {
		errors = append(errors, ValidationError{
			Field:   "jobs",
			Message: "at least one job must be defined",
		})
	}
	for name, job := range c.Jobs {
		if err := c.validateJob(name, &job); err != nil {
			errors = append(errors, err...)
		}
	}

	// Validate processing settings
	if err := c.validateProcessing(); err != nil {
		errors = append(errors, err...)
	}

	// Validate logging settings
	if err := c.validateLogging(); err != nil {
		errors = append(errors, err...)
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateJob(name string, job *JobConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("jobs.%s", name)

	// RootRef and RootName may both be set (ref wins), both may be empty
	// (all roots). Nothing to require here, but warn-level conflicts are
	// surfaced by the validate command, not treated as errors.

	validPolicies := map[string]bool{"exclude": true, "include": true, "": true}
	if !validPolicies[job.MissingModified] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".missing_modified",
			Message: "missing_modified must be 'exclude' or 'include'",
		})
	}

	if job.Output == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".output",
			Message: "output path is required ('-' for stdout)",
		})
	}

	// Every mapped identifier must be a plain identifier; these names are
	// interpolated into queries.
	schema := job.EffectiveSchema()
	idents := map[string]string{
		".schema.container_table":     schema.ContainerTable,
		".schema.container_pk":        schema.ContainerPK,
		".schema.container_name":      schema.ContainerName,
		".schema.container_parent_fk": schema.ContainerParentFK,
		".schema.leaf_table":          schema.LeafTable,
		".schema.leaf_pk":             schema.LeafPK,
		".schema.leaf_name":           schema.LeafName,
		".schema.leaf_fk":             schema.LeafFK,
		".schema.leaf_modified":       schema.LeafModified,
	}
	for field, ident := range idents {
		if !sqlutil.IsValidIdentifier(ident) {
			errors = append(errors, ValidationError{
				Field:   prefix + field,
				Message: fmt.Sprintf("%q is not a valid identifier", ident),
			})
		}
	}

	if job.Verification != nil {
		validMethods := map[string]bool{"recount": true, "store-count": true, "": true}
		if !validMethods[job.Verification.Method] {
			errors = append(errors, ValidationError{
				Field:   prefix + ".verification.method",
				Message: "method must be 'recount' or 'store-count'",
			})
		}
		// store-count compares against a whole-table COUNT, which only
		// lines up with a walk that starts from every root.
		if job.Verification.Method == "store-count" && (job.RootName != "" || job.RootRef != "") {
			errors = append(errors, ValidationError{
				Field:   prefix + ".verification.method",
				Message: "store-count verification requires an all-roots job (no root_name/root_ref)",
			})
		}
	}

	if job.Processing != nil {
		if job.Processing.FlushSize < 0 {
			errors = append(errors, ValidationError{
				Field:   prefix + ".processing.flush_size",
				Message: "flush_size cannot be negative",
			})
		}
		if job.Processing.SleepSeconds < 0 {
			errors = append(errors, ValidationError{
				Field:   prefix + ".processing.sleep_seconds",
				Message: "sleep_seconds cannot be negative",
			})
		}
	}

	return errors
}

func (c *Config) validateProcessing() ValidationErrors {
	var errors ValidationErrors

	if c.Processing.FlushSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "processing.flush_size",
			Message: "flush_size must be positive",
		})
	}

	if c.Processing.SleepSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "processing.sleep_seconds",
			Message: "sleep_seconds cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
