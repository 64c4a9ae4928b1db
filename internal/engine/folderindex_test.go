package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureFolderCreatesWhenAbsent(t *testing.T) {
	store := newFakeStore()
	fi := NewFolderIndex(store)

	id, created, err := fi.EnsureFolder(context.Background(), "2026-08-29", "root")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, store.createFolderCalls[callKey("root", "2026-08-29")])
}

func TestEnsureFolderReturnsExisting(t *testing.T) {
	store := newFakeStore()
	existing := store.seedFolder("photos", "day")
	fi := NewFolderIndex(store)

	id, created, err := fi.EnsureFolder(context.Background(), "photos", "day")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing, id)
	assert.Zero(t, store.createFolderCalls[callKey("day", "photos")])
}

func TestEnsureFolderFirstMatchWinsOnDuplicates(t *testing.T) {
	store := newFakeStore()
	first := store.seedFolder("photos", "day")
	store.seedFolder("photos", "day")
	fi := NewFolderIndex(store)

	id, _, err := fi.EnsureFolder(context.Background(), "photos", "day")
	require.NoError(t, err)
	assert.Equal(t, first, id)
}

func TestEnsureFolderIgnoresPlainFileWithSameName(t *testing.T) {
	store := newFakeStore()
	store.seedFile("photos", "day", nil)
	fi := NewFolderIndex(store)

	id, created, err := fi.EnsureFolder(context.Background(), "photos", "day")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)
}

func TestEnsureFolderMemoized(t *testing.T) {
	store := newFakeStore()
	fi := NewFolderIndex(store)
	ctx := context.Background()

	id1, _, err := fi.EnsureFolder(ctx, "photos", "day")
	require.NoError(t, err)
	id2, created, err := fi.EnsureFolder(ctx, "photos", "day")
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.False(t, created)
	assert.Equal(t, 1, store.listCalls[callKey("day", "photos")])
	assert.Equal(t, 1, store.createFolderCalls[callKey("day", "photos")])
}

func TestEnsureFolderDistinguishesParents(t *testing.T) {
	store := newFakeStore()
	fi := NewFolderIndex(store)
	ctx := context.Background()

	a, _, err := fi.EnsureFolder(ctx, "photos", "day-1")
	require.NoError(t, err)
	b, _, err := fi.EnsureFolder(ctx, "photos", "day-2")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
