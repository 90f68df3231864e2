package voicetest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alkime/rapidvoice/internal/voice"
)

// Files is a voice.AudioFileManager rooted in a test temp dir.
type Files struct {
	mu sync.Mutex

	dir       string
	next      int
	createErr error
	deleteErr error
	deleted   []string
}

var _ voice.AudioFileManager = (*Files)(nil)

func NewFiles(t testing.TB) *Files {
	t.Helper()
	return &Files{dir: t.TempDir()}
}

func (f *Files) FailCreate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

func (f *Files) FailDelete(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr = err
}

func (f *Files) Dir() string {
	return f.dir
}

func (f *Files) CreateRecordingFilePath() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return "", f.createErr
	}
	f.next++

	return filepath.Join(f.dir, fmt.Sprintf("recording_%d.mp3", f.next)), nil
}

func (f *Files) DeleteRecording(path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return false, f.deleteErr
	}

	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	f.deleted = append(f.deleted, path)

	return true, nil
}

// Deleted returns the paths removed through DeleteRecording.
func (f *Files) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// Exists reports whether path is present on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
