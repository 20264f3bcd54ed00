// Package export drives a traversal and writes the emitted leaves out as
// NDJSON, with flush batching, pacing, and per-job watermark persistence.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dbsmedya/treestream/internal/config"
	"github.com/dbsmedya/treestream/internal/logger"
	"github.com/dbsmedya/treestream/internal/traverse"
)

// Result contains statistics and status of one export run. Counts are
// accurate even when the run was cancelled or failed, so callers can
// report partial progress honestly.
type Result struct {
	JobName            string
	StartedAt          time.Time
	CompletedAt        time.Time
	Duration           time.Duration
	LeavesExported     int64
	LeavesFiltered     int64
	ContainersExpanded int
	CyclesDetected     int
	Outcome            traverse.Outcome
	Success            bool
}

// Exporter consumes a traversal and writes one JSON object per leaf.
// The writer is flushed every FlushSize leaves, with an optional sleep
// between flushes to pace load on whatever sits behind the writer.
type Exporter struct {
	out       io.Writer
	flushSize int
	sleep     time.Duration
	logger    *logger.Logger
}

// NewExporter creates an exporter with the given pacing configuration.
func NewExporter(out io.Writer, processing config.ProcessingConfig, log *logger.Logger) (*Exporter, error) {
	if out == nil {
		return nil, fmt.Errorf("output writer is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	flushSize := processing.FlushSize
	if flushSize <= 0 {
		flushSize = 500
	}

	return &Exporter{
		out:       out,
		flushSize: flushSize,
		sleep:     time.Duration(processing.SleepSeconds * float64(time.Second)),
		logger:    log,
	}, nil
}

// Run performs one export: start a traversal, pull leaves one at a time,
// encode each as a JSON line. The traversal's laziness carries through:
// a slow writer back-pressures the walk instead of buffering it.
func (x *Exporter) Run(ctx context.Context, engine *traverse.Engine, opts traverse.Options, jobName string) (*Result, error) {
	result := &Result{
		JobName:   jobName,
		StartedAt: time.Now(),
	}
	log := x.logger.WithJob(jobName)

	log.Infow("Starting export",
		"flush_size", x.flushSize,
		"sleep", x.sleep.Seconds(),
		"changed_since", opts.ChangedSince,
	)

	t, err := engine.Start(ctx, opts)
	if err != nil {
		result.Outcome = traverse.OutcomeFailed
		x.seal(result, nil)
		return result, err
	}

	w := bufio.NewWriter(x.out)
	enc := json.NewEncoder(w)
	sinceFlush := 0

	for {
		leaf, ok, err := t.Next(ctx)
		if err != nil {
			flushErr := w.Flush()
			x.seal(result, t)
			if result.Outcome == traverse.OutcomeCancelled {
				log.Warnw("Export cancelled",
					"exported", result.LeavesExported,
				)
			} else {
				log.Errorw("Export failed", "error", err)
			}
			if flushErr != nil {
				log.Warnw("Failed to flush partial output", "error", flushErr)
			}
			return result, err
		}
		if !ok {
			break
		}

		if err := enc.Encode(leaf); err != nil {
			x.seal(result, t)
			return result, fmt.Errorf("failed to encode leaf %q: %w", leaf.Ref, err)
		}

		sinceFlush++
		if sinceFlush >= x.flushSize {
			if err := w.Flush(); err != nil {
				x.seal(result, t)
				return result, fmt.Errorf("failed to flush output: %w", err)
			}
			sinceFlush = 0
			if x.sleep > 0 {
				select {
				case <-ctx.Done():
					// Next's own check reports this as cancelled on the
					// following iteration.
				case <-time.After(x.sleep):
				}
			}
		}
	}

	if err := w.Flush(); err != nil {
		x.seal(result, t)
		return result, fmt.Errorf("failed to flush output: %w", err)
	}

	x.seal(result, t)
	result.Success = true

	log.Infow("Export completed",
		"exported", result.LeavesExported,
		"filtered", result.LeavesFiltered,
		"containers", result.ContainersExpanded,
		"cycles", result.CyclesDetected,
		"duration", result.Duration,
	)

	return result, nil
}

// seal copies the traversal counters into the result and stamps timing.
func (x *Exporter) seal(result *Result, t *traverse.Traversal) {
	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	if t == nil {
		return
	}
	stats := t.Stats()
	result.LeavesExported = stats.LeavesEmitted
	result.LeavesFiltered = stats.LeavesFiltered
	result.ContainersExpanded = stats.ContainersExpanded
	result.CyclesDetected = stats.CyclesDetected
	result.Outcome = stats.Outcome
}
