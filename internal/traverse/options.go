package traverse

import "time"

// MissingModifiedPolicy decides the fate of a leaf with no modification
// timestamp while a changed-since filter is active. The zero value
// excludes such leaves, which keeps incremental exports conservative; use
// IncludeMissingModified for stores that never stamp rows.
type MissingModifiedPolicy int

const (
	ExcludeMissingModified MissingModifiedPolicy = iota
	IncludeMissingModified
)

// ParseMissingModifiedPolicy maps a config string onto a policy. The empty
// string means the default (exclude).
func ParseMissingModifiedPolicy(s string) MissingModifiedPolicy {
	if s == "include" {
		return IncludeMissingModified
	}
	return ExcludeMissingModified
}

// Options configures one traversal invocation.
type Options struct {
	// RootRef selects a single root container by ref. When set it takes
	// precedence over RootName; with neither set, every root container
	// is walked.
	RootRef ContainerRef

	// RootName selects root containers by name.
	RootName string

	// ChangedSince, when set, admits only leaves whose modification time
	// is strictly after it.
	ChangedSince *time.Time

	// MissingModified applies when ChangedSince is set and a leaf has no
	// modification time.
	MissingModified MissingModifiedPolicy

	// OnCycle, when non-nil, is invoked once per container that is
	// reached a second time. Purely observational; the walk continues.
	OnCycle func(ContainerRef)
}

// selector normalizes the root selection fields into a RootSelector,
// applying the documented byRef > byName > all precedence.
func (o *Options) selector() RootSelector {
	if o.RootRef != "" {
		return RootSelector{Scope: RootByRef, Ref: o.RootRef}
	}
	if o.RootName != "" {
		return RootSelector{Scope: RootByName, Name: o.RootName}
	}
	return RootSelector{Scope: RootAll}
}

// admits reports whether a leaf passes the changed-since filter.
func (o *Options) admits(leaf LeafItem) bool {
	if o.ChangedSince == nil {
		return true
	}
	if leaf.LastModified == nil {
		return o.MissingModified == IncludeMissingModified
	}
	return leaf.LastModified.After(*o.ChangedSince)
}
