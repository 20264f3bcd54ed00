package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dbsmedya/treestream/internal/config"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var listJobsCmd = &cobra.Command{
	Use:   "list-jobs",
	Short: "List all jobs defined in configuration",
	Long: `List-jobs displays all export jobs defined in the configuration file
along with their root selection, schema mapping and output destination.

Example:
  treestream list-jobs --config treestream.yaml`,
	RunE: runListJobs,
}

func init() {
	rootCmd.AddCommand(listJobsCmd)
}

func runListJobs(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	jobNames := cfg.ListJobs()
	if len(jobNames) == 0 {
		cmd.Printf("No jobs defined in %s\n", configFile)
		return nil
	}

	// Sort job names for consistent output
	sort.Strings(jobNames)

	cmd.Printf("Jobs defined in %s:\n\n", configFile)

	for i, jobName := range jobNames {
		job, err := cfg.GetJob(jobName)
		if err != nil {
			return fmt.Errorf("failed to get job %q: %w", jobName, err)
		}
		schema := job.EffectiveSchema()

		// Job header
		cmd.Printf("%d. %s\n", i+1, jobName)
		cmd.Printf("   %s %s\n", padLabel("Roots:"), describeRoots(job))
		cmd.Printf("   %s %s -> %s\n", padLabel("Tables:"), schema.ContainerTable, schema.LeafTable)
		cmd.Printf("   %s %s\n", padLabel("Output:"), describeOutput(job.Output))

		if job.MissingModified != "" {
			cmd.Printf("   %s %s\n", padLabel("Missing modified:"), job.MissingModified)
		}

		// Job-specific processing config
		if job.Processing != nil {
			cmd.Printf("   %s Custom (flush_size=%d, sleep_seconds=%.1f)\n",
				padLabel("Processing:"), job.Processing.FlushSize, job.Processing.SleepSeconds)
		}

		// Job-specific verification config
		if job.Verification != nil {
			cmd.Printf("   %s Custom (method=%s, skip=%v)\n",
				padLabel("Verification:"), job.Verification.Method, job.Verification.SkipVerification)
		}

		// Add spacing between jobs
		if i < len(jobNames)-1 {
			cmd.Println()
		}
	}

	cmd.Printf("\nTotal: %d job(s)\n", len(jobNames))
	return nil
}

// padLabel pads a label to a fixed display width so the values align, even
// when job names or labels contain wide runes.
func padLabel(label string) string {
	const col = 18
	pad := col - runewidth.StringWidth(label)
	if pad < 0 {
		pad = 0
	}
	return label + strings.Repeat(" ", pad)
}

func describeRoots(job *config.JobConfig) string {
	switch {
	case job.RootRef != "":
		return fmt.Sprintf("container ref %s", job.RootRef)
	case job.RootName != "":
		return fmt.Sprintf("containers named %q", job.RootName)
	default:
		return "all root containers"
	}
}

func describeOutput(output string) string {
	if output == "-" {
		return "stdout"
	}
	return output
}
