// Package verify checks that an export emitted what the catalog holds.
package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/dbsmedya/treestream/internal/logger"
	"github.com/dbsmedya/treestream/internal/traverse"
)

// Method selects how an export is verified.
type Method string

const (
	// MethodRecount walks the catalog a second time with the same options
	// and compares admitted-leaf counts. Valid for any root selection.
	MethodRecount Method = "recount"

	// MethodStoreCount compares against a filtered COUNT over the leaf
	// table. Cheaper, but only valid for all-roots exports since it
	// cannot scope the count to a subtree.
	MethodStoreCount Method = "store-count"
)

// LeafCounter is implemented by stores that can count leaves directly,
// without a traversal.
type LeafCounter interface {
	CountLeaves(ctx context.Context, changedSince *time.Time, includeMissing bool) (int64, error)
}

// Result contains the outcome of a verification.
type Result struct {
	Method   Method
	Expected int64
	Actual   int64
	Passed   bool
	Duration time.Duration
}

// Verifier validates export completeness.
type Verifier struct {
	engine *traverse.Engine
	store  traverse.Store
	logger *logger.Logger
}

// NewVerifier creates a verifier over the same engine and store the
// export ran against.
func NewVerifier(engine *traverse.Engine, store traverse.Store, log *logger.Logger) (*Verifier, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	return &Verifier{
		engine: engine,
		store:  store,
		logger: log,
	}, nil
}

// Verify checks that exported matches what the catalog yields for the
// same options. A mismatch returns an error so the caller treats the
// export as failed and leaves the watermark alone.
func (v *Verifier) Verify(ctx context.Context, method Method, opts traverse.Options, exported int64) (*Result, error) {
	start := time.Now()

	result := &Result{
		Method: method,
		Actual: exported,
	}

	var expected int64
	var err error
	switch method {
	case MethodRecount, "":
		expected, err = v.recount(ctx, opts)
		result.Method = MethodRecount
	case MethodStoreCount:
		expected, err = v.storeCount(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown verification method %q", method)
	}
	if err != nil {
		return nil, err
	}

	result.Expected = expected
	result.Passed = expected == exported
	result.Duration = time.Since(start)

	if !result.Passed {
		v.logger.Errorw("Verification failed",
			"method", string(result.Method),
			"expected", expected,
			"exported", exported,
		)
		return result, fmt.Errorf("verification failed: expected %d leaves, exported %d", expected, exported)
	}

	v.logger.Infow("Verification passed",
		"method", string(result.Method),
		"leaves", expected,
		"duration", result.Duration,
	)
	return result, nil
}

// recount re-walks the catalog counting admitted leaves. The cycle
// observer is suppressed: cycles were already reported by the export walk.
func (v *Verifier) recount(ctx context.Context, opts traverse.Options) (int64, error) {
	opts.OnCycle = nil

	t, err := v.engine.Start(ctx, opts)
	if err != nil {
		return 0, fmt.Errorf("recount failed: %w", err)
	}

	var count int64
	for {
		_, ok, err := t.Next(ctx)
		if err != nil {
			return 0, fmt.Errorf("recount failed: %w", err)
		}
		if !ok {
			return count, nil
		}
		count++
	}
}

// storeCount asks the store for a direct filtered count.
func (v *Verifier) storeCount(ctx context.Context, opts traverse.Options) (int64, error) {
	if opts.RootName != "" || opts.RootRef != "" {
		return 0, fmt.Errorf("store-count verification requires an all-roots export")
	}

	counter, ok := v.store.(LeafCounter)
	if !ok {
		return 0, fmt.Errorf("store does not support direct leaf counts")
	}

	count, err := counter.CountLeaves(ctx, opts.ChangedSince, opts.MissingModified == traverse.IncludeMissingModified)
	if err != nil {
		return 0, fmt.Errorf("store count failed: %w", err)
	}
	return count, nil
}
