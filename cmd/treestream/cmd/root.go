package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile      string
	logLevel     string
	logFormat    string
	flushSize    int
	sleepSeconds float64
	skipVerify   bool
)

var rootCmd = &cobra.Command{
	Use:   "treestream",
	Short: "MySQL Catalog Tree Streamer",
	Long: `A CLI tool for streaming leaf items out of hierarchical MySQL catalogs
breadth-first, with bounded memory and incremental changed-since exports.

Features:
  - Lazy breadth-first traversal (memory bounded by frontier width)
  - Cycle detection with diagnostics instead of hangs
  - Per-job changed-since watermarks for incremental sync
  - Post-export verification (recount or store-count)
  - Advisory job locking against concurrent runs`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "treestream.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Processing overrides
	rootCmd.PersistentFlags().IntVar(&flushSize, "flush-size", 0,
		"Override flush size (leaves per output flush)")
	rootCmd.PersistentFlags().Float64Var(&sleepSeconds, "sleep", 0,
		"Override sleep seconds between flushes")

	// Verification override
	rootCmd.PersistentFlags().BoolVar(&skipVerify, "skip-verify", false,
		"Skip post-export verification")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel     string
	LogFormat    string
	FlushSize    int
	SleepSeconds float64
	SkipVerify   bool
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:     logLevel,
		LogFormat:    logFormat,
		FlushSize:    flushSize,
		SleepSeconds: sleepSeconds,
		SkipVerify:   skipVerify,
	}
}
