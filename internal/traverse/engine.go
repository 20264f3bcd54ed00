package traverse

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/dbsmedya/treestream/internal/logger"
)

// Engine walks a catalog store breadth-first. It holds no traversal state
// itself; every Start call gets its own frontier and visited set, so
// independent traversals (e.g. two jobs over different catalogs) never
// share anything.
type Engine struct {
	store  Store
	logger *logger.Logger
}

// NewEngine creates a traversal engine over the given store.
func NewEngine(store Store, log *logger.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	return &Engine{
		store:  store,
		logger: log,
	}, nil
}

// Traversal is one in-flight walk. It is a pull-driven state machine: the
// engine advances only when the consumer calls Next, and between calls at
// most one container's children sit in the pending buffer. Not safe for
// concurrent use; each invocation owns its state exclusively.
type Traversal struct {
	engine  *Engine
	opts    Options
	logger  *logger.Logger
	started time.Time

	frontier *Frontier
	visited  *VisitedSet
	pending  []Child // children of the current container not yet classified

	stats Stats
	done  bool
	err   error
}

// Start resolves root containers and seeds the frontier. A selector that
// matches nothing produces an empty traversal, not an error: scheduled
// callers get a no-op run instead of a crash.
func (e *Engine) Start(ctx context.Context, opts Options) (*Traversal, error) {
	sel := opts.selector()
	roots, err := e.store.Roots(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root containers: %w", err)
	}

	t := &Traversal{
		engine:   e,
		opts:     opts,
		logger:   e.logger,
		started:  time.Now(),
		frontier: NewFrontier(),
		visited:  NewVisitedSet(),
	}

	for _, root := range roots {
		t.frontier.Enqueue(root)
	}
	t.stats.MaxFrontierLen = t.frontier.Len()

	e.logger.Debugw("Traversal started",
		"roots", len(roots),
		"scope", sel.Scope,
		"changed_since", opts.ChangedSince,
	)

	if len(roots) == 0 {
		t.finish(nil)
	}

	return t, nil
}

// Next advances the walk until the next admissible leaf.
//
// Returns (leaf, true, nil) for each emitted leaf, (zero, false, nil) on
// exhaustion, and (zero, false, err) on a store fault or cancellation.
// After termination every further call returns the same terminal result.
func (t *Traversal) Next(ctx context.Context) (LeafItem, bool, error) {
	if t.done {
		return LeafItem{}, false, t.err
	}

	for {
		// Classify buffered children first, one at a time. The consumer's
		// processing of leaf i finishes before leaf i+1 is even looked at.
		for len(t.pending) > 0 {
			if err := ctx.Err(); err != nil {
				return LeafItem{}, false, t.finish(err)
			}

			child := t.pending[0]
			t.pending = t.pending[1:]

			if child.Kind == ChildContainer {
				t.frontier.Enqueue(child.Container)
				if l := t.frontier.Len(); l > t.stats.MaxFrontierLen {
					t.stats.MaxFrontierLen = l
				}
				continue
			}

			if t.opts.admits(child.Leaf) {
				t.stats.LeavesEmitted++
				return child.Leaf, true, nil
			}
			t.stats.LeavesFiltered++
		}

		// Cancellation check at the top of each dequeue iteration.
		if err := ctx.Err(); err != nil {
			return LeafItem{}, false, t.finish(err)
		}

		ref, ok := t.frontier.Dequeue()
		if !ok {
			// Frontier drained: traversal complete.
			return LeafItem{}, false, t.finish(nil)
		}

		if t.visited.Contains(ref) {
			// Reached a second time via some path: catalog corruption,
			// not legitimate structure. Skip it, tell the observer, and
			// keep walking.
			t.stats.CyclesDetected++
			t.logger.Warnw("Cycle detected, skipping already-expanded container",
				"container", string(ref),
			)
			if t.opts.OnCycle != nil {
				t.opts.OnCycle(ref)
			}
			continue
		}
		t.visited.Add(ref)

		children, err := t.engine.store.Children(ctx, ref)
		if err != nil {
			// Fail fast: a half-walked catalog reported as success would
			// silently under-report to export callers.
			return LeafItem{}, false, t.finish(fmt.Errorf("failed to list children of %q: %w", ref, err))
		}

		t.stats.ContainersExpanded++
		t.pending = children
	}
}

// finish terminates the traversal and classifies the outcome. Cancellation
// is recognized even when it surfaces through a store call, and is never
// reported as a store fault.
func (t *Traversal) finish(err error) error {
	t.done = true
	t.pending = nil
	t.stats.Duration = time.Since(t.started)

	switch {
	case err == nil:
		t.stats.Outcome = OutcomeCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		t.stats.Outcome = OutcomeCancelled
		t.err = err
	default:
		t.stats.Outcome = OutcomeFailed
		t.err = err
	}

	t.logger.Debugw("Traversal finished",
		"outcome", t.stats.Outcome.String(),
		"containers", t.stats.ContainersExpanded,
		"emitted", t.stats.LeavesEmitted,
		"filtered", t.stats.LeavesFiltered,
		"cycles", t.stats.CyclesDetected,
		"duration", t.stats.Duration,
	)

	return t.err
}

// Stats returns a snapshot of the traversal counters.
func (t *Traversal) Stats() Stats {
	return t.stats
}

// VisitedOrder returns the containers in expansion order. Diagnostic only.
func (t *Traversal) VisitedOrder() []ContainerRef {
	return t.visited.Order()
}

// Stream returns the traversal as a lazy sequence. A non-nil error is the
// final element; breaking out of the range abandons the walk with no
// cleanup needed beyond garbage collection.
func (e *Engine) Stream(ctx context.Context, opts Options) iter.Seq2[LeafItem, error] {
	return func(yield func(LeafItem, error) bool) {
		t, err := e.Start(ctx, opts)
		if err != nil {
			yield(LeafItem{}, err)
			return
		}

		for {
			leaf, ok, err := t.Next(ctx)
			if err != nil {
				yield(LeafItem{}, err)
				return
			}
			if !ok {
				return
			}
			if !yield(leaf, nil) {
				return
			}
		}
	}
}
