// Package traverse implements the bounded-memory breadth-first walk over a
// hierarchical catalog. The engine pulls containers off a FIFO frontier,
// asks the backing store for their children, and hands leaves to the
// consumer one at a time: at any instant no more than one container's
// children are buffered ahead of the consumer, so peak memory follows
// frontier width rather than catalog size.
package traverse

import (
	"context"
	"time"
)

// ContainerRef is an opaque identifier for a hierarchy node. Two refs are
// the same container iff their values compare equal.
type ContainerRef string

// LeafItem is a terminal catalog item handed to the consumer.
type LeafItem struct {
	Ref          string     `json:"ref"`
	Name         string     `json:"name,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// ChildKind discriminates the Child variant.
type ChildKind int

const (
	// ChildContainer marks a child that may have further children.
	ChildContainer ChildKind = iota
	// ChildLeaf marks a terminal item.
	ChildLeaf
)

// Child is a tagged variant: either a container reference to enqueue or a
// fully built leaf to emit. Exactly one of Container/Leaf is meaningful,
// selected by Kind.
type Child struct {
	Kind      ChildKind
	Container ContainerRef
	Leaf      LeafItem
}

// ContainerChild builds a container-kind child.
func ContainerChild(ref ContainerRef) Child {
	return Child{Kind: ChildContainer, Container: ref}
}

// LeafChild builds a leaf-kind child.
func LeafChild(leaf LeafItem) Child {
	return Child{Kind: ChildLeaf, Leaf: leaf}
}

// RootScope selects how root containers are resolved.
type RootScope int

const (
	// RootAll walks every root container in the store.
	RootAll RootScope = iota
	// RootByName walks root containers whose name matches.
	RootByName
	// RootByRef walks a single container identified by ref.
	RootByRef
)

// RootSelector is the normalized root selection passed to the store.
type RootSelector struct {
	Scope RootScope
	Name  string       // set when Scope == RootByName
	Ref   ContainerRef // set when Scope == RootByRef
}

// Store is the catalog collaborator the engine consumes. A selector that
// matches nothing must yield an empty slice, not an error; errors are
// reserved for store faults and fail the whole traversal.
//
// Children must return a stable order for an unchanged catalog. The engine
// never re-sorts.
type Store interface {
	Roots(ctx context.Context, sel RootSelector) ([]ContainerRef, error)
	Children(ctx context.Context, ref ContainerRef) ([]Child, error)
}

// Outcome classifies how a traversal ended.
type Outcome int

const (
	// OutcomeRunning means the traversal has not terminated yet.
	OutcomeRunning Outcome = iota
	// OutcomeCompleted means the frontier drained normally.
	OutcomeCompleted
	// OutcomeCancelled means the caller's context ended the walk.
	OutcomeCancelled
	// OutcomeFailed means a store fault terminated the walk.
	OutcomeFailed
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeRunning:
		return "running"
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats describes one traversal invocation. Counts are valid at any point
// during the walk; Outcome and Duration settle when it terminates.
type Stats struct {
	ContainersExpanded int
	LeavesEmitted      int64
	LeavesFiltered     int64
	CyclesDetected     int
	MaxFrontierLen     int
	Duration           time.Duration
	Outcome            Outcome
}
