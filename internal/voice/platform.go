package voice

import (
	"context"
	"time"
)

// AudioRecorder captures audio to a file.
type AudioRecorder interface {
	// Start begins capturing to outputPath.
	Start(ctx context.Context, outputPath string) error
	// Stop ends the capture and reports the finished file. The recorder
	// must release its device handle even when Stop fails.
	Stop(ctx context.Context) (RawRecording, error)
	// CurrentFilePath returns the file being captured, or "" when idle.
	CurrentFilePath() string
	// Delete removes a recording file and reports whether it was removed.
	Delete(path string) bool
	// Release frees the platform handle.
	Release() error
}

// AudioPlayer plays recorded files.
type AudioPlayer interface {
	Start(ctx context.Context, path string) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	// Position returns the current playback position.
	Position() time.Duration
	// OnCompleted registers fn to run when playback reaches the end on its
	// own. It is not called for Stop.
	OnCompleted(fn func())
	// Release frees the platform handle.
	Release() error
}

// AudioFileManager allocates and removes recording files.
type AudioFileManager interface {
	// CreateRecordingFilePath returns a fresh writable path.
	CreateRecordingFilePath() (string, error)
	// DeleteRecording removes path. It returns (false, nil) when there was
	// nothing to delete and an error only for genuine I/O failures.
	DeleteRecording(path string) (bool, error)
}
