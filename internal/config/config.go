// Package config provides configuration structures and loading for treestream.
package config

// Config represents the complete application configuration.
type Config struct {
	Catalog    DatabaseConfig       `yaml:"catalog" mapstructure:"catalog"`
	Jobs       map[string]JobConfig `yaml:"jobs" mapstructure:"jobs"`
	Processing ProcessingConfig     `yaml:"processing" mapstructure:"processing"`
	Logging    LoggingConfig        `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents the MySQL catalog database connection.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// JobConfig represents one export job: which roots to walk, how the
// catalog tables are laid out, and where the leaves go.
type JobConfig struct {
	// Root selection. RootRef takes precedence over RootName when both
	// are set; with neither set the job walks every root container.
	RootName string `yaml:"root_name" mapstructure:"root_name"`
	RootRef  string `yaml:"root_ref" mapstructure:"root_ref"`

	Schema SchemaConfig `yaml:"schema" mapstructure:"schema"`

	// Output is the NDJSON destination path; "-" means stdout.
	Output string `yaml:"output" mapstructure:"output"`

	// MissingModified decides what happens to leaves without a
	// modification timestamp when a changed-since filter is active:
	// "exclude" (default) or "include".
	MissingModified string `yaml:"missing_modified" mapstructure:"missing_modified"`

	Processing   *ProcessingConfig   `yaml:"processing,omitempty" mapstructure:"processing"`
	Verification *VerificationConfig `yaml:"verification,omitempty" mapstructure:"verification"`
}

// SchemaConfig maps a job onto the catalog tables. Every field must be a
// plain identifier; validation rejects anything else.
type SchemaConfig struct {
	ContainerTable    string `yaml:"container_table" mapstructure:"container_table"`
	ContainerPK       string `yaml:"container_pk" mapstructure:"container_pk"`
	ContainerName     string `yaml:"container_name" mapstructure:"container_name"`
	ContainerParentFK string `yaml:"container_parent_fk" mapstructure:"container_parent_fk"`
	LeafTable         string `yaml:"leaf_table" mapstructure:"leaf_table"`
	LeafPK            string `yaml:"leaf_pk" mapstructure:"leaf_pk"`
	LeafName          string `yaml:"leaf_name" mapstructure:"leaf_name"`
	LeafFK            string `yaml:"leaf_fk" mapstructure:"leaf_fk"`
	LeafModified      string `yaml:"leaf_modified" mapstructure:"leaf_modified"`
}

// ProcessingConfig represents export pacing settings.
type ProcessingConfig struct {
	FlushSize    int     `yaml:"flush_size" mapstructure:"flush_size"`
	SleepSeconds float64 `yaml:"sleep_seconds" mapstructure:"sleep_seconds"`
}

// VerificationConfig represents post-export verification settings.
type VerificationConfig struct {
	Method           string `yaml:"method" mapstructure:"method"` // "recount" or "store-count"
	SkipVerification bool   `yaml:"skip_verification" mapstructure:"skip_verification"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultSchema returns the conventional catalog layout.
func DefaultSchema() SchemaConfig {
	return SchemaConfig{
		ContainerTable:    "categories",
		ContainerPK:       "id",
		ContainerName:     "name",
		ContainerParentFK: "parent_id",
		LeafTable:         "products",
		LeafPK:            "id",
		LeafName:          "name",
		LeafFK:            "category_id",
		LeafModified:      "updated_at",
	}
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Catalog: DatabaseConfig{
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Processing: ProcessingConfig{
			FlushSize:    500,
			SleepSeconds: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// GetJobProcessing returns the processing config for a job by name, falling back to global if not set.
func (c *Config) GetJobProcessing(jobName string) ProcessingConfig {
	job, err := c.GetJob(jobName)
	if err != nil {
		return c.Processing
	}
	return job.GetJobProcessing(c.Processing)
}

// GetJobProcessing returns the processing config for a job, falling back to global if not set.
func (jc *JobConfig) GetJobProcessing(global ProcessingConfig) ProcessingConfig {
	if jc.Processing == nil {
		return global
	}

	// Merge job-specific with global defaults
	result := global
	if jc.Processing.FlushSize > 0 {
		result.FlushSize = jc.Processing.FlushSize
	}
	if jc.Processing.SleepSeconds > 0 {
		result.SleepSeconds = jc.Processing.SleepSeconds
	}
	return result
}

// GetJobVerification returns the verification config for a job, falling back
// to a recount default when unset.
func (jc *JobConfig) GetJobVerification() VerificationConfig {
	if jc.Verification == nil {
		return VerificationConfig{Method: "recount"}
	}

	result := *jc.Verification
	if result.Method == "" {
		result.Method = "recount"
	}
	return result
}

// EffectiveSchema returns the job's schema mapping with defaults filled in
// for any unset field.
func (jc *JobConfig) EffectiveSchema() SchemaConfig {
	s := jc.Schema
	def := DefaultSchema()
	if s.ContainerTable == "" {
		s.ContainerTable = def.ContainerTable
	}
	if s.ContainerPK == "" {
		s.ContainerPK = def.ContainerPK
	}
	if s.ContainerName == "" {
		s.ContainerName = def.ContainerName
	}
	if s.ContainerParentFK == "" {
		s.ContainerParentFK = def.ContainerParentFK
	}
	if s.LeafTable == "" {
		s.LeafTable = def.LeafTable
	}
	if s.LeafPK == "" {
		s.LeafPK = def.LeafPK
	}
	if s.LeafName == "" {
		s.LeafName = def.LeafName
	}
	if s.LeafFK == "" {
		s.LeafFK = def.LeafFK
	}
	if s.LeafModified == "" {
		s.LeafModified = def.LeafModified
	}
	return s
}
