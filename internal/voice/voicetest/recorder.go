// Package voicetest provides in-memory collaborators for exercising a
// voice.Coordinator without audio hardware.
package voicetest

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/alkime/rapidvoice/internal/voice"
)

var errAlreadyStarted = errors.New("voicetest: recorder already started")

// Recorder is a fake voice.AudioRecorder. It writes a small placeholder
// file on Start and reports wall-clock duration on Stop.
type Recorder struct {
	mu sync.Mutex

	startErr   error
	stopErr    error
	releaseErr error

	path     string
	started  time.Time
	calls    []string
	deleted  []string
	released bool
}

var _ voice.AudioRecorder = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailStart makes the next Start calls return err. A nil err clears it.
func (r *Recorder) FailStart(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErr = err
}

// FailStop makes Stop return err. The capture is still torn down.
func (r *Recorder) FailStop(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopErr = err
}

func (r *Recorder) FailRelease(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseErr = err
}

func (r *Recorder) Start(_ context.Context, outputPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, "start")
	if r.startErr != nil {
		return r.startErr
	}
	if r.path != "" {
		return errAlreadyStarted
	}

	if err := os.WriteFile(outputPath, []byte("ID3"), 0o600); err != nil {
		return err
	}

	r.path = outputPath
	r.started = time.Now()

	return nil
}

func (r *Recorder) Stop(_ context.Context) (voice.RawRecording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, "stop")
	path := r.path
	r.path = ""

	if r.stopErr != nil {
		return voice.RawRecording{}, r.stopErr
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	return voice.RawRecording{
		FilePath:  path,
		Duration:  time.Since(r.started),
		SizeBytes: size,
	}, nil
}

func (r *Recorder) CurrentFilePath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

func (r *Recorder) Delete(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, "delete")
	if err := os.Remove(path); err != nil {
		return false
	}
	r.deleted = append(r.deleted, path)

	return true
}

func (r *Recorder) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, "release")
	r.released = true
	r.path = ""

	return r.releaseErr
}

// Calls returns the method names called so far, in order.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Deleted returns the paths removed through Delete.
func (r *Recorder) Deleted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deleted...)
}

func (r *Recorder) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}
