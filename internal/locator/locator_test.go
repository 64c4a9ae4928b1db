package locator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferredMountWins(t *testing.T) {
	preferred := t.TempDir()
	fallback := t.TempDir()

	l := Locator{Preferred: preferred, MediaRoots: []string{}, Fallback: fallback}
	base, err := l.Base()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(preferred, DataDirName), base)
	assert.DirExists(t, base)
}

func TestScanPicksFirstWritableMount(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "KINGSTON"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ZDRIVE"), 0o755))
	// A plain file among the mounts is skipped.
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0o644))

	l := Locator{Preferred: filepath.Join(root, "absent"), MediaRoots: []string{root}, Fallback: t.TempDir()}
	base, err := l.Base()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "KINGSTON", DataDirName), base)
}

func TestUnwritableMountSkipped(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses directory write bits")
	}
	root := t.TempDir()
	locked := filepath.Join(root, "LOCKED")
	require.NoError(t, os.MkdirAll(locked, 0o555))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })
	require.NoError(t, os.MkdirAll(filepath.Join(root, "OPEN"), 0o755))

	l := Locator{Preferred: "/nonexistent", MediaRoots: []string{root}, Fallback: t.TempDir()}
	base, err := l.Base()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "OPEN", DataDirName), base)
}

func TestFallbackWhenNoMounts(t *testing.T) {
	fallback := t.TempDir()
	l := Locator{Preferred: "/nonexistent", MediaRoots: []string{"/nonexistent"}, Fallback: fallback}
	base, err := l.Base()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fallback, DataDirName), base)
	assert.DirExists(t, base)
}

func TestBaseIdempotent(t *testing.T) {
	fallback := t.TempDir()
	l := Locator{Preferred: "/nonexistent", MediaRoots: []string{}, Fallback: fallback}

	first, err := l.Base()
	require.NoError(t, err)
	second, err := l.Base()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
