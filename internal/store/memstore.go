// Package store provides catalog store implementations consumed by the
// traversal engine: an in-memory store for dry runs and tests, and a
// MySQL-backed store for real catalogs.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dbsmedya/treestream/internal/traverse"
)

// MemStore is an in-memory catalog. Children are returned in insertion
// order, so traversals over an unchanged MemStore are deterministic.
//
// It doubles as a fixture builder: AddRoot/AddContainer/AddLeaf grow the
// tree, and Link wires arbitrary extra edges, including the back-edges
// that cycle handling guards against.
type MemStore struct {
	names    map[traverse.ContainerRef]string
	children map[traverse.ContainerRef][]traverse.Child
	roots    []traverse.ContainerRef
}

// NewMemStore creates an empty in-memory catalog.
func NewMemStore() *MemStore {
	return &MemStore{
		names:    make(map[traverse.ContainerRef]string),
		children: make(map[traverse.ContainerRef][]traverse.Child),
	}
}

// AddRoot registers a root container.
func (s *MemStore) AddRoot(ref traverse.ContainerRef, name string) {
	s.names[ref] = name
	s.roots = append(s.roots, ref)
}

// AddContainer registers a container as a child of parent.
func (s *MemStore) AddContainer(parent, ref traverse.ContainerRef, name string) {
	s.names[ref] = name
	s.children[parent] = append(s.children[parent], traverse.ContainerChild(ref))
}

// AddLeaf attaches a leaf to parent.
func (s *MemStore) AddLeaf(parent traverse.ContainerRef, leaf traverse.LeafItem) {
	s.children[parent] = append(s.children[parent], traverse.LeafChild(leaf))
}

// Link adds an edge from parent to an existing container without
// re-registering it. Used to model shared subtrees and cycles.
func (s *MemStore) Link(parent, ref traverse.ContainerRef) {
	s.children[parent] = append(s.children[parent], traverse.ContainerChild(ref))
}

// Roots implements traverse.Store. A byName selector that matches nothing
// and a byRef selector for an unknown container both yield an empty slice.
func (s *MemStore) Roots(_ context.Context, sel traverse.RootSelector) ([]traverse.ContainerRef, error) {
	switch sel.Scope {
	case traverse.RootByRef:
		if _, ok := s.names[sel.Ref]; ok {
			return []traverse.ContainerRef{sel.Ref}, nil
		}
		return nil, nil
	case traverse.RootByName:
		var refs []traverse.ContainerRef
		for _, root := range s.roots {
			if s.names[root] == sel.Name {
				refs = append(refs, root)
			}
		}
		return refs, nil
	default:
		refs := make([]traverse.ContainerRef, len(s.roots))
		copy(refs, s.roots)
		return refs, nil
	}
}

// Children implements traverse.Store.
func (s *MemStore) Children(_ context.Context, ref traverse.ContainerRef) ([]traverse.Child, error) {
	kids := s.children[ref]
	out := make([]traverse.Child, len(kids))
	copy(out, kids)
	return out, nil
}

// CountLeaves returns the number of distinct leaves passing the filter,
// counted directly over the catalog (not via traversal). Leaves reachable
// through multiple edges are counted once.
func (s *MemStore) CountLeaves(_ context.Context, changedSince *time.Time, includeMissing bool) (int64, error) {
	seen := make(map[string]bool)
	var count int64
	for _, kids := range s.children {
		for _, child := range kids {
			if child.Kind != traverse.ChildLeaf || seen[child.Leaf.Ref] {
				continue
			}
			seen[child.Leaf.Ref] = true
			if changedSince != nil {
				if child.Leaf.LastModified == nil {
					if !includeMissing {
						continue
					}
				} else if !child.Leaf.LastModified.After(*changedSince) {
					continue
				}
			}
			count++
		}
	}
	return count, nil
}

// Synthetic builds a uniform catalog for dry runs and boundedness checks:
// one root, the given branching factor of sub-containers per container
// down to depth levels, and leavesPerContainer leaves on every container.
// Leaf timestamps fan out one minute apart from the given base time.
func Synthetic(depth, branching, leavesPerContainer int, base time.Time) *MemStore {
	s := NewMemStore()
	root := traverse.ContainerRef("c0")
	s.AddRoot(root, "root")

	next := 1
	leafSeq := 0
	level := []traverse.ContainerRef{root}

	for d := 0; d <= depth; d++ {
		var following []traverse.ContainerRef
		for _, parent := range level {
			for i := 0; i < leavesPerContainer; i++ {
				ts := base.Add(time.Duration(leafSeq) * time.Minute)
				s.AddLeaf(parent, traverse.LeafItem{
					Ref:          fmt.Sprintf("p%d", leafSeq),
					Name:         fmt.Sprintf("product-%d", leafSeq),
					LastModified: &ts,
				})
				leafSeq++
			}
			if d == depth {
				continue
			}
			for i := 0; i < branching; i++ {
				ref := traverse.ContainerRef(fmt.Sprintf("c%d", next))
				s.AddContainer(parent, ref, fmt.Sprintf("category-%d", next))
				next++
				following = append(following, ref)
			}
		}
		level = following
	}

	return s
}
