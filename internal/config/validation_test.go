package config

import (
	"strings"
	"testing"
)

func validTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.Catalog.Host = "localhost"
	cfg.Catalog.User = "exporter"
	cfg.Catalog.Database = "catalog"
	cfg.Jobs = map[string]JobConfig{
		"nightly": {Output: "-"},
	}
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := validTestConfig().Validate(); err != nil {
		t.Errorf("valid config failed validation: %v", err)
	}
}

func TestValidate_CatalogDatabase(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "Missing host",
			mutate:  func(c *Config) { c.Catalog.Host = "" },
			wantErr: "catalog.host",
		},
		{
			name:    "Missing user",
			mutate:  func(c *Config) { c.Catalog.User = "" },
			wantErr: "catalog.user",
		},
		{
			name:    "Missing database",
			mutate:  func(c *Config) { c.Catalog.Database = "" },
			wantErr: "catalog.database",
		},
		{
			name:    "Invalid port",
			mutate:  func(c *Config) { c.Catalog.Port = 70000 },
			wantErr: "catalog.port",
		},
		{
			name:    "Invalid TLS mode",
			mutate:  func(c *Config) { c.Catalog.TLS = "maybe" },
			wantErr: "catalog.tls",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_Jobs(t *testing.T) {
	t.Run("No jobs", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Jobs = nil

		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "at least one job") {
			t.Errorf("expected missing-jobs error, got: %v", err)
		}
	})

	t.Run("Missing output", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Jobs["nightly"] = JobConfig{}

		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "jobs.nightly.output") {
			t.Errorf("expected output error, got: %v", err)
		}
	})

	t.Run("Invalid missing_modified", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Jobs["nightly"] = JobConfig{Output: "-", MissingModified: "maybe"}

		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "missing_modified") {
			t.Errorf("expected missing_modified error, got: %v", err)
		}
	})

	t.Run("Invalid schema identifier", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Jobs["nightly"] = JobConfig{
			Output: "-",
			Schema: SchemaConfig{LeafTable: "products; DROP TABLE users"},
		}

		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "jobs.nightly.schema.leaf_table") {
			t.Errorf("expected schema identifier error, got: %v", err)
		}
	})

	t.Run("Unknown verification method", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Jobs["nightly"] = JobConfig{
			Output:       "-",
			Verification: &VerificationConfig{Method: "checksum"},
		}

		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "verification.method") {
			t.Errorf("expected verification method error, got: %v", err)
		}
	})

	t.Run("Store-count with scoped roots rejected", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Jobs["nightly"] = JobConfig{
			Output:       "-",
			RootName:     "Fashion",
			Verification: &VerificationConfig{Method: "store-count"},
		}

		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "all-roots job") {
			t.Errorf("expected store-count scoping error, got: %v", err)
		}
	})

	t.Run("Store-count with all roots accepted", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Jobs["nightly"] = JobConfig{
			Output:       "-",
			Verification: &VerificationConfig{Method: "store-count"},
		}

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid config, got: %v", err)
		}
	})

	t.Run("Negative job flush size", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Jobs["nightly"] = JobConfig{
			Output:     "-",
			Processing: &ProcessingConfig{FlushSize: -1},
		}

		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "processing.flush_size") {
			t.Errorf("expected flush_size error, got: %v", err)
		}
	})
}

func TestValidate_Processing(t *testing.T) {
	cfg := validTestConfig()
	cfg.Processing.FlushSize = 0

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "flush_size must be positive") {
		t.Errorf("expected flush_size error, got: %v", err)
	}
}

func TestValidate_Logging(t *testing.T) {
	cfg := validTestConfig()
	cfg.Logging.Level = "verbose"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("expected logging.level error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "logging.format") {
		t.Errorf("expected logging.format error, got: %v", err)
	}
}

func TestValidationErrors_Format(t *testing.T) {
	errs := ValidationErrors{
		{Field: "catalog.host", Message: "host is required"},
		{Field: "jobs", Message: "at least one job must be defined"},
	}

	msg := errs.Error()
	if !strings.Contains(msg, "validation failed:") {
		t.Errorf("expected header, got: %s", msg)
	}
	if !strings.Contains(msg, "catalog.host: host is required") {
		t.Errorf("expected field error, got: %s", msg)
	}
}
