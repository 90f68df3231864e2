package storage_test

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/alkime/rapidvoice/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecordings(t *testing.T) *storage.Recordings {
	t.Helper()

	r, err := storage.NewRecordings(t.TempDir())
	require.NoError(t, err)

	return r
}

func touch(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
}

func TestNewRecordings(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	r, err := storage.NewRecordings(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, storage.DirName), r.Dir())
	assert.DirExists(t, r.Dir())

	_, err = storage.NewRecordings("")
	require.Error(t, err)
}

func TestRecordings_CreateRecordingFilePath(t *testing.T) {
	t.Parallel()

	r := newRecordings(t)
	pattern := regexp.MustCompile(`^recording_\d+_[1-9]\d{3}\.mp3$`)

	seen := map[string]bool{}
	for range 20 {
		path, err := r.CreateRecordingFilePath()
		require.NoError(t, err)

		assert.Equal(t, r.Dir(), filepath.Dir(path))
		assert.Regexp(t, pattern, filepath.Base(path))
		assert.NoFileExists(t, path, "only the name is allocated")

		touch(t, path, 1)
		assert.False(t, seen[path], "paths are unique")
		seen[path] = true
	}
}

func TestRecordings_DeleteRecording(t *testing.T) {
	t.Parallel()

	r := newRecordings(t)
	path, err := r.CreateRecordingFilePath()
	require.NoError(t, err)
	touch(t, path, 10)

	ok, err := r.DeleteRecording(path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, path)

	ok, err = r.DeleteRecording(path)
	require.NoError(t, err)
	assert.False(t, ok, "missing file is not an error")
}

func TestRecordings_DeleteRefusesOutsidePaths(t *testing.T) {
	t.Parallel()

	r := newRecordings(t)
	outside := filepath.Join(t.TempDir(), "keep.mp3")
	touch(t, outside, 10)

	for _, path := range []string{
		outside,
		filepath.Join(r.Dir(), "..", "escape.mp3"),
		r.Dir(),
	} {
		ok, err := r.DeleteRecording(path)
		require.ErrorIs(t, err, storage.ErrOutsideDir, path)
		assert.False(t, ok)
	}
	assert.FileExists(t, outside)
}

func TestRecordings_CacheAccounting(t *testing.T) {
	t.Parallel()

	r := newRecordings(t)

	size, err := r.Size()
	require.NoError(t, err)
	assert.Zero(t, size)

	for _, n := range []int{100, 250} {
		path, err := r.CreateRecordingFilePath()
		require.NoError(t, err)
		touch(t, path, n)
	}
	other := filepath.Join(r.Dir(), "notes.txt")
	touch(t, other, 1000)

	files, err := r.Files()
	require.NoError(t, err)
	assert.Len(t, files, 2)

	size, err = r.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(350), size)

	removed, err := r.ClearCache()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	size, err = r.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
	assert.FileExists(t, other, "only recordings are cleared")
}

func TestExistsAndFileSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.mp3")

	assert.False(t, storage.Exists(path))
	assert.Zero(t, storage.FileSize(path))

	touch(t, path, 42)
	assert.True(t, storage.Exists(path))
	assert.Equal(t, int64(42), storage.FileSize(path))

	assert.False(t, storage.Exists(dir), "directories are not files")
}

func TestRecordings_ClearCacheKeeps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		keep        func(paths []string) []string
		wantRemoved int
		wantLeft    int
	}{
		{
			name:        "nothing kept",
			keep:        func([]string) []string { return nil },
			wantRemoved: 3,
		},
		{
			name:        "referenced recordings survive",
			keep:        func(paths []string) []string { return paths[:2] },
			wantRemoved: 1,
			wantLeft:    2,
		},
		{
			name: "unknown and missing paths are ignored",
			keep: func(paths []string) []string {
				return []string{"/elsewhere/recording.mp3", paths[0] + ".gone"}
			},
			wantRemoved: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newRecordings(t)
			var paths []string
			for range 3 {
				path, err := r.CreateRecordingFilePath()
				require.NoError(t, err)
				touch(t, path, 10)
				paths = append(paths, path)
			}

			keep := tt.keep(paths)
			removed, err := r.ClearCache(keep...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemoved, removed)

			left, err := r.Files()
			require.NoError(t, err)
			assert.Len(t, left, tt.wantLeft)
			for _, p := range left {
				assert.Contains(t, keep, p)
			}
		})
	}
}
