package store

import (
	"context"
	"testing"
	"time"

	"github.com/dbsmedya/treestream/internal/traverse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_Roots(t *testing.T) {
	s := NewMemStore()
	s.AddRoot("r1", "Fashion")
	s.AddRoot("r2", "Electronics")
	s.AddRoot("r3", "Fashion") // same display name as r1
	s.AddContainer("r1", "c1", "Clothing")

	ctx := context.Background()

	t.Run("All roots in insertion order", func(t *testing.T) {
		refs, err := s.Roots(ctx, traverse.RootSelector{Scope: traverse.RootAll})
		require.NoError(t, err)
		assert.Equal(t, []traverse.ContainerRef{"r1", "r2", "r3"}, refs)
	})

	t.Run("By name matches every root with that name", func(t *testing.T) {
		refs, err := s.Roots(ctx, traverse.RootSelector{Scope: traverse.RootByName, Name: "Fashion"})
		require.NoError(t, err)
		assert.Equal(t, []traverse.ContainerRef{"r1", "r3"}, refs)
	})

	t.Run("By unknown name is empty, not an error", func(t *testing.T) {
		refs, err := s.Roots(ctx, traverse.RootSelector{Scope: traverse.RootByName, Name: "Toys"})
		require.NoError(t, err)
		assert.Empty(t, refs)
	})

	t.Run("By ref resolves non-root containers too", func(t *testing.T) {
		refs, err := s.Roots(ctx, traverse.RootSelector{Scope: traverse.RootByRef, Ref: "c1"})
		require.NoError(t, err)
		assert.Equal(t, []traverse.ContainerRef{"c1"}, refs)
	})

	t.Run("By unknown ref is empty, not an error", func(t *testing.T) {
		refs, err := s.Roots(ctx, traverse.RootSelector{Scope: traverse.RootByRef, Ref: "missing"})
		require.NoError(t, err)
		assert.Empty(t, refs)
	})
}

func TestMemStore_ChildrenReturnsCopy(t *testing.T) {
	s := NewMemStore()
	s.AddRoot("r", "Root")
	s.AddContainer("r", "a", "A")
	s.AddLeaf("r", traverse.LeafItem{Ref: "p1", Name: "One"})

	ctx := context.Background()
	kids, err := s.Children(ctx, "r")
	require.NoError(t, err)
	require.Len(t, kids, 2)

	// Mutating the returned slice must not corrupt the catalog.
	kids[0] = traverse.LeafChild(traverse.LeafItem{Ref: "bogus"})

	again, err := s.Children(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, traverse.ChildContainer, again[0].Kind)
	assert.Equal(t, traverse.ContainerRef("a"), again[0].Container)
}

func TestMemStore_CountLeaves(t *testing.T) {
	cutoff := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	before := cutoff.Add(-time.Hour)
	after := cutoff.Add(time.Hour)

	s := NewMemStore()
	s.AddRoot("r", "Root")
	s.AddContainer("r", "a", "A")
	s.AddContainer("r", "b", "B")
	s.AddLeaf("a", traverse.LeafItem{Ref: "p-old", LastModified: &before})
	s.AddLeaf("a", traverse.LeafItem{Ref: "p-new", LastModified: &after})
	s.AddLeaf("b", traverse.LeafItem{Ref: "p-unstamped"})
	// Shared leaf reachable from both containers counts once.
	s.AddLeaf("b", traverse.LeafItem{Ref: "p-new", LastModified: &after})

	ctx := context.Background()

	count, err := s.CountLeaves(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = s.CountLeaves(ctx, &cutoff, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = s.CountLeaves(ctx, &cutoff, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSynthetic_Shape(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s := Synthetic(2, 3, 2, base)

	ctx := context.Background()

	roots, err := s.Roots(ctx, traverse.RootSelector{Scope: traverse.RootAll})
	require.NoError(t, err)
	require.Equal(t, []traverse.ContainerRef{"c0"}, roots)

	kids, err := s.Children(ctx, "c0")
	require.NoError(t, err)

	var leaves, containers int
	for _, child := range kids {
		switch child.Kind {
		case traverse.ChildLeaf:
			leaves++
			require.NotNil(t, child.Leaf.LastModified)
		case traverse.ChildContainer:
			containers++
		}
	}
	assert.Equal(t, 2, leaves)
	assert.Equal(t, 3, containers)

	// Total leaves: containers = 1 + 3 + 9 = 13, two leaves each.
	count, err := s.CountLeaves(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, int64(26), count)
}
