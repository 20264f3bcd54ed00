package verify

import (
	"context"
	"testing"
	"time"

	"github.com/dbsmedya/treestream/internal/store"
	"github.com/dbsmedya/treestream/internal/traverse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *store.MemStore {
	t.Helper()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	s := store.NewMemStore()
	s.AddRoot("root", "Catalog")
	s.AddContainer("root", "sub", "Sub")
	for i, parent := range []traverse.ContainerRef{"root", "sub", "sub"} {
		ts := base.Add(time.Duration(i) * time.Hour)
		s.AddLeaf(parent, traverse.LeafItem{
			Ref:          string(rune('a' + i)),
			LastModified: &ts,
		})
	}
	return s
}

func newTestVerifier(t *testing.T) (*Verifier, *traverse.Engine) {
	t.Helper()
	catalog := testCatalog(t)
	engine, err := traverse.NewEngine(catalog, nil)
	require.NoError(t, err)
	v, err := NewVerifier(engine, catalog, nil)
	require.NoError(t, err)
	return v, engine
}

func TestNewVerifier_Validation(t *testing.T) {
	catalog := store.NewMemStore()
	engine, err := traverse.NewEngine(catalog, nil)
	require.NoError(t, err)

	v, err := NewVerifier(nil, catalog, nil)
	assert.Error(t, err)
	assert.Nil(t, v)

	v, err = NewVerifier(engine, nil, nil)
	assert.Error(t, err)
	assert.Nil(t, v)

	v, err = NewVerifier(engine, catalog, nil)
	assert.NoError(t, err)
	assert.NotNil(t, v)
}

func TestVerifier_Recount(t *testing.T) {
	v, _ := newTestVerifier(t)
	ctx := context.Background()

	t.Run("Matching count passes", func(t *testing.T) {
		result, err := v.Verify(ctx, MethodRecount, traverse.Options{}, 3)
		require.NoError(t, err)
		assert.True(t, result.Passed)
		assert.Equal(t, int64(3), result.Expected)
		assert.Equal(t, int64(3), result.Actual)
	})

	t.Run("Empty method defaults to recount", func(t *testing.T) {
		result, err := v.Verify(ctx, "", traverse.Options{}, 3)
		require.NoError(t, err)
		assert.Equal(t, MethodRecount, result.Method)
		assert.True(t, result.Passed)
	})

	t.Run("Mismatch is an error", func(t *testing.T) {
		result, err := v.Verify(ctx, MethodRecount, traverse.Options{}, 2)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "verification failed: expected 3 leaves, exported 2")
		require.NotNil(t, result)
		assert.False(t, result.Passed)
	})

	t.Run("Recount honors the changed-since filter", func(t *testing.T) {
		cutoff := time.Date(2026, 8, 1, 0, 30, 0, 0, time.UTC)
		result, err := v.Verify(ctx, MethodRecount, traverse.Options{ChangedSince: &cutoff}, 2)
		require.NoError(t, err)
		assert.True(t, result.Passed)
		assert.Equal(t, int64(2), result.Expected)
	})
}

func TestVerifier_StoreCount(t *testing.T) {
	v, _ := newTestVerifier(t)
	ctx := context.Background()

	t.Run("All-roots export passes", func(t *testing.T) {
		result, err := v.Verify(ctx, MethodStoreCount, traverse.Options{}, 3)
		require.NoError(t, err)
		assert.True(t, result.Passed)
		assert.Equal(t, MethodStoreCount, result.Method)
	})

	t.Run("Scoped export is rejected", func(t *testing.T) {
		_, err := v.Verify(ctx, MethodStoreCount, traverse.Options{RootName: "Catalog"}, 3)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires an all-roots export")
	})
}

// bareStore implements traverse.Store without CountLeaves.
type bareStore struct {
	traverse.Store
}

func TestVerifier_StoreCount_RequiresLeafCounter(t *testing.T) {
	catalog := testCatalog(t)
	engine, err := traverse.NewEngine(catalog, nil)
	require.NoError(t, err)

	v, err := NewVerifier(engine, &bareStore{Store: catalog}, nil)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), MethodStoreCount, traverse.Options{}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support direct leaf counts")
}

func TestVerifier_UnknownMethod(t *testing.T) {
	v, _ := newTestVerifier(t)

	_, err := v.Verify(context.Background(), Method("checksum"), traverse.Options{}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown verification method "checksum"`)
}
