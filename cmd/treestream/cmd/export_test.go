package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbsmedya/treestream/internal/export"
	"github.com/dbsmedya/treestream/internal/traverse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveChangedSince(t *testing.T) {
	watermark := time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC)
	jobState := &export.JobState{JobName: "nightly", Watermark: &watermark}

	origFull, origSince := exportFull, exportSince
	defer func() { exportFull, exportSince = origFull, origSince }()

	t.Run("Watermark is the default", func(t *testing.T) {
		exportFull, exportSince = false, ""

		got, err := resolveChangedSince(jobState)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Equal(watermark))
	})

	t.Run("No watermark means full export", func(t *testing.T) {
		exportFull, exportSince = false, ""

		got, err := resolveChangedSince(&export.JobState{JobName: "fresh"})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Full flag ignores the watermark", func(t *testing.T) {
		exportFull, exportSince = true, ""

		got, err := resolveChangedSince(jobState)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Since flag overrides the watermark", func(t *testing.T) {
		exportFull, exportSince = false, "2026-08-25T00:00:00Z"

		got, err := resolveChangedSince(jobState)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 25, got.Day())
	})

	t.Run("Invalid since value", func(t *testing.T) {
		exportFull, exportSince = false, "last tuesday"

		_, err := resolveChangedSince(jobState)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "want RFC3339")
	})
}

func TestRunOutcome(t *testing.T) {
	tests := []struct {
		name    string
		outcome traverse.Outcome
		runErr  error
		success bool
		want    export.RunOutcome
	}{
		{
			name:    "Clean verified run",
			outcome: traverse.OutcomeCompleted,
			success: true,
			want:    export.RunOutcomeCompleted,
		},
		{
			name:    "Cancelled walk",
			outcome: traverse.OutcomeCancelled,
			runErr:  context.Canceled,
			want:    export.RunOutcomeCancelled,
		},
		{
			name:    "Store fault",
			outcome: traverse.OutcomeFailed,
			runErr:  errors.New("connection reset"),
			want:    export.RunOutcomeFailed,
		},
		{
			name:    "Completed walk but failed verification",
			outcome: traverse.OutcomeCompleted,
			runErr:  errors.New("verification failed"),
			want:    export.RunOutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runOutcome(tt.outcome, tt.runErr, tt.success))
		})
	}
}

func TestOpenOutput(t *testing.T) {
	t.Run("Dash means stdout", func(t *testing.T) {
		out, closeOut, err := openOutput("-")
		require.NoError(t, err)
		defer closeOut()
		assert.Equal(t, os.Stdout, out)
	})

	t.Run("Path creates a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.ndjson")

		out, closeOut, err := openOutput(path)
		require.NoError(t, err)
		require.NotNil(t, out)
		closeOut()

		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("Unwritable path is an error", func(t *testing.T) {
		_, _, err := openOutput("/nonexistent-dir/out.ndjson")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open output")
	})
}
