package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunDryRun(t *testing.T) {
	origDepth, origBranching, origLeaves, origStop := dryrunDepth, dryrunBranching, dryrunLeaves, dryrunStopAfter
	defer func() {
		dryrunDepth, dryrunBranching, dryrunLeaves, dryrunStopAfter = origDepth, origBranching, origLeaves, origStop
	}()

	t.Run("Full walk", func(t *testing.T) {
		dryrunDepth, dryrunBranching, dryrunLeaves, dryrunStopAfter = 2, 3, 2, 0

		err := runDryRun(dryRunCmd, nil)
		assert.NoError(t, err)
	})

	t.Run("Early stop", func(t *testing.T) {
		dryrunDepth, dryrunBranching, dryrunLeaves, dryrunStopAfter = 3, 4, 5, 7

		err := runDryRun(dryRunCmd, nil)
		assert.NoError(t, err)
	})
}
