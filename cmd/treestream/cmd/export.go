package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dbsmedya/treestream/internal/config"
	"github.com/dbsmedya/treestream/internal/database"
	"github.com/dbsmedya/treestream/internal/export"
	"github.com/dbsmedya/treestream/internal/lock"
	"github.com/dbsmedya/treestream/internal/logger"
	"github.com/dbsmedya/treestream/internal/store"
	"github.com/dbsmedya/treestream/internal/traverse"
	"github.com/dbsmedya/treestream/internal/verify"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

var (
	exportJob   string
	exportForce bool
	exportSince string
	exportFull  bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export catalog leaves as NDJSON",
	Long: `Export walks the catalog tree breadth-first from the job's configured
roots and writes one JSON object per leaf item to the job's output.

The export process follows these steps:
  1. Resolve the changed-since watermark (unless --full or --since)
  2. Stream leaves lazily, flushing the output in batches
  3. Verify the export (recount or store-count)
  4. Advance the watermark only after a verified, complete run

Example:
  treestream export --config treestream.yaml --job nightly_products`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportJob, "job", "j", "",
		"Job name from configuration file (required)")
	exportCmd.MarkFlagRequired("job")

	exportCmd.Flags().BoolVar(&exportForce, "force", false,
		"Force execution even if job lock cannot be acquired (use with caution)")

	exportCmd.Flags().StringVar(&exportSince, "since", "",
		"Override changed-since filter (RFC3339, e.g. 2026-08-01T00:00:00Z)")

	exportCmd.Flags().BoolVar(&exportFull, "full", false,
		"Ignore the stored watermark and export everything")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	jobCfg, err := cfg.GetJob(exportJob)
	if err != nil {
		return err
	}

	// Apply CLI overrides
	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat,
		overrides.FlushSize, overrides.SleepSeconds)

	// Initialize logger
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()
	log = log.WithJob(exportJob)

	log.Infow("Starting export",
		"job", exportJob,
		"config", configFile,
	)

	// Setup context with signal handling
	ctx, cancel := database.ShutdownContext(func(os.Signal) {
		log.Warn("Received shutdown signal - stopping traversal...")
	})
	defer cancel()

	// Connect to the catalog database
	dbManager := database.NewManager(cfg)
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to catalog database: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.Ping(ctx); err != nil {
		return fmt.Errorf("catalog database connection failed: %w", err)
	}

	// Acquire advisory lock to prevent concurrent runs of the same job
	if !exportForce {
		jobLock := lock.NewJobLock(dbManager.Catalog, exportJob)
		if err := jobLock.AcquireOrFail(ctx); err != nil {
			if errors.Is(err, lock.ErrLockTimeout) {
				return fmt.Errorf("job '%s' is already running on another instance (use --force to override)", exportJob)
			}
			return fmt.Errorf("failed to acquire job lock: %w", err)
		}
		defer jobLock.ReleaseLock(context.Background())
		log.Infow("Acquired advisory lock for job", "job", exportJob)
	} else {
		log.Warnw("Skipping advisory lock acquisition (--force flag used)", "job", exportJob)
	}

	// Watermark bookkeeping lives in the catalog database
	wm, err := export.NewWatermarkManager(dbManager.Catalog, log)
	if err != nil {
		return fmt.Errorf("failed to create watermark manager: %w", err)
	}
	if err := wm.InitializeTables(ctx); err != nil {
		return fmt.Errorf("failed to initialize watermark tables: %w", err)
	}

	jobState, err := wm.GetOrCreateJob(ctx, exportJob)
	if err != nil {
		return fmt.Errorf("failed to load job state: %w", err)
	}

	changedSince, err := resolveChangedSince(jobState)
	if err != nil {
		return err
	}
	if changedSince != nil {
		log.Infow("Incremental export", "changed_since", changedSince.Format(time.RFC3339))
	} else {
		log.Info("Full export (no changed-since filter)")
	}

	// The next watermark is the run's start time, not its end time.
	// Leaves modified while the walk runs fall into the next window.
	runStart := time.Now()

	runID, err := wm.BeginRun(ctx, exportJob, runStart)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}

	catalogStore, err := store.NewMySQLStore(dbManager.Catalog, jobCfg.EffectiveSchema(), log)
	if err != nil {
		return fmt.Errorf("failed to create catalog store: %w", err)
	}

	engine, err := traverse.NewEngine(catalogStore, log)
	if err != nil {
		return fmt.Errorf("failed to create traversal engine: %w", err)
	}

	out, closeOut, err := openOutput(jobCfg.Output)
	if err != nil {
		return err
	}
	defer closeOut()

	exporter, err := export.NewExporter(out, jobCfg.GetJobProcessing(cfg.Processing), log)
	if err != nil {
		return fmt.Errorf("failed to create exporter: %w", err)
	}

	opts := traverse.Options{
		RootRef:         traverse.ContainerRef(jobCfg.RootRef),
		RootName:        jobCfg.RootName,
		ChangedSince:    changedSince,
		MissingModified: traverse.ParseMissingModifiedPolicy(jobCfg.MissingModified),
		OnCycle: func(ref traverse.ContainerRef) {
			color.Warn.Printf("cycle detected at container %s (edge skipped)\n", ref)
		},
	}

	result, runErr := exporter.Run(ctx, engine, opts, exportJob)

	// Verification only makes sense for a completed walk
	verifyCfg := jobCfg.GetJobVerification()
	if runErr == nil && !overrides.SkipVerify && !verifyCfg.SkipVerification {
		verifier, err := verify.NewVerifier(engine, catalogStore, log)
		if err != nil {
			runErr = fmt.Errorf("failed to create verifier: %w", err)
		} else if _, err := verifier.Verify(ctx, verify.Method(verifyCfg.Method), opts, result.LeavesExported); err != nil {
			runErr = err
			result.Success = false
		}
	}

	// Record the run and advance the watermark on a clean, verified export
	finishCtx, finishCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer finishCancel()

	outcome := runOutcome(result.Outcome, runErr, result.Success)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if err := wm.FinishRun(finishCtx, runID, outcome, result.LeavesExported, errMsg); err != nil {
		log.Warnw("Failed to record run completion", "error", err)
	}

	if runErr == nil && result.Success {
		if err := wm.AdvanceWatermark(finishCtx, exportJob, runStart, result.LeavesExported); err != nil {
			return fmt.Errorf("export succeeded but watermark update failed: %w", err)
		}
	} else if err := wm.UpdateJobStatus(finishCtx, exportJob, export.JobStatusFailed); err != nil {
		log.Warnw("Failed to record job status", "error", err)
	}

	printExportSummary(result)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Warn("Export cancelled by user")
			return nil
		}
		return fmt.Errorf("export failed: %w", runErr)
	}

	return nil
}

// resolveChangedSince picks the effective filter: --full wins, then
// --since, then the job's stored watermark.
func resolveChangedSince(jobState *export.JobState) (*time.Time, error) {
	if exportFull {
		return nil, nil
	}
	if exportSince != "" {
		t, err := time.Parse(time.RFC3339, exportSince)
		if err != nil {
			return nil, fmt.Errorf("invalid --since value %q (want RFC3339): %w", exportSince, err)
		}
		return &t, nil
	}
	return jobState.Watermark, nil
}

// openOutput opens the job's NDJSON destination. "-" means stdout, which
// must not be closed.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open output %q: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func runOutcome(outcome traverse.Outcome, runErr error, success bool) export.RunOutcome {
	switch {
	case runErr == nil && success:
		return export.RunOutcomeCompleted
	case outcome == traverse.OutcomeCancelled || errors.Is(runErr, context.Canceled):
		return export.RunOutcomeCancelled
	default:
		return export.RunOutcomeFailed
	}
}

func printExportSummary(result *export.Result) {
	fmt.Printf("\n=== Export Complete ===\n")
	fmt.Printf("Job: %s\n", result.JobName)
	fmt.Printf("Duration: %s\n", result.Duration)
	fmt.Printf("Leaves Exported: %d\n", result.LeavesExported)
	fmt.Printf("Leaves Filtered: %d\n", result.LeavesFiltered)
	fmt.Printf("Containers Expanded: %d\n", result.ContainersExpanded)
	if result.CyclesDetected > 0 {
		color.Warn.Printf("Cycles Detected: %d\n", result.CyclesDetected)
	} else {
		fmt.Printf("Cycles Detected: 0\n")
	}
	if result.Success {
		color.Success.Println("Success: true")
	} else {
		color.Error.Printf("Success: false (outcome: %s)\n", result.Outcome)
	}
}
