// Package storage manages the on-disk cache of voice recordings.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/alkime/rapidvoice/internal/voice"
	"github.com/alkime/rapidvoice/pkg/collections"
)

const (
	// DirName is the recordings directory under the cache root.
	DirName = "voice_recordings"

	recordingExt = ".mp3"
)

// ErrOutsideDir is returned for paths that are not inside the recordings
// directory.
var ErrOutsideDir = errors.New("path is outside the recordings directory")

// DefaultRoot returns the cache root used when none is configured:
//
//	$XDG_CACHE_HOME/rapidvoice (or the platform equivalent)
func DefaultRoot() (string, error) {
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return filepath.Join(cache, "rapidvoice"), nil
}

// Recordings allocates and removes recording files under one directory.
// It implements voice.AudioFileManager.
type Recordings struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

var _ voice.AudioFileManager = (*Recordings)(nil)

// NewRecordings prepares root/voice_recordings and returns a manager for it.
func NewRecordings(root string) (*Recordings, error) {
	if root == "" {
		return nil, errors.New("storage root cannot be empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	dir := filepath.Join(abs, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory %s: %w", dir, err)
	}

	return &Recordings{dir: dir, now: time.Now}, nil
}

// Dir returns the recordings directory.
func (r *Recordings) Dir() string {
	return r.dir
}

// CreateRecordingFilePath returns a fresh path of the form
// recording_<unixms>_<1000-9999>.mp3. The file itself is not created.
func (r *Recordings) CreateRecordingFilePath() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recordings directory %s: %w", r.dir, err)
	}

	for range 10 {
		name := fmt.Sprintf("recording_%d_%d%s", r.now().UnixMilli(), 1000+rand.IntN(9000), recordingExt)
		path := filepath.Join(r.dir, name)
		if !Exists(path) {
			return path, nil
		}
	}

	return "", fmt.Errorf("could not allocate a unique recording name in %s", r.dir)
}

// DeleteRecording removes path. A missing file is reported as (false, nil).
func (r *Recordings) DeleteRecording(path string) (bool, error) {
	if err := r.contains(path); err != nil {
		return false, err
	}

	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete recording %s: %w", path, err)
	}

	return true, nil
}

func (r *Recordings) contains(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	rel, err := filepath.Rel(r.dir, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideDir, path)
	}

	return nil
}

// Files lists the recordings in the directory, oldest name first.
func (r *Recordings) Files() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.dir, err)
	}

	recordings := collections.Filter(entries, func(e fs.DirEntry) bool {
		return !e.IsDir() && filepath.Ext(e.Name()) == recordingExt
	})

	return collections.Apply(recordings, func(e fs.DirEntry) string {
		return filepath.Join(r.dir, e.Name())
	}), nil
}

// Size returns the total size in bytes of all recordings.
func (r *Recordings) Size() (int64, error) {
	files, err := r.Files()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, f := range files {
		total += FileSize(f)
	}

	return total, nil
}

// ClearCache deletes every recording except the keep paths and reports how
// many were removed. Other files in the directory are left alone.
func (r *Recordings) ClearCache(keep ...string) (int, error) {
	files, err := r.Files()
	if err != nil {
		return 0, err
	}

	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		if abs, err := filepath.Abs(k); err == nil {
			kept[abs] = true
		}
	}
	files = collections.Filter(files, func(f string) bool { return !kept[f] })

	removed := 0
	var errs []error
	for _, f := range files {
		ok, err := r.DeleteRecording(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			removed++
		}
	}

	return removed, errors.Join(errs...)
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// FileSize returns the size of path, or 0 if it cannot be read.
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
