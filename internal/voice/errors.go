package voice

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the Coordinator matches exactly one
// of these with errors.Is.
var (
	ErrAlreadyRecording    = errors.New("already recording")
	ErrInvalidState        = errors.New("invalid state")
	ErrRecordingFailed     = errors.New("recording failed")
	ErrPlaybackFailed      = errors.New("playback failed")
	ErrFileOperationFailed = errors.New("file operation failed")
	ErrReleased            = errors.New("coordinator released")
)

// OpError describes a failed coordinator operation.
type OpError struct {
	// Kind is one of the Err* sentinels above.
	Kind error
	// Op is the coordinator operation that failed, e.g. "stop recording".
	Op string
	// State is the state the operation ran against.
	State State
	// Err is the underlying platform cause, if any.
	Err error
}

func (e *OpError) Error() string {
	msg := fmt.Sprintf("voice: %s: %v", e.Op, e.Kind)
	if e.State != nil && (e.Kind == ErrInvalidState || e.Kind == ErrAlreadyRecording) {
		msg += " (state " + e.State.String() + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap exposes both the kind and the platform cause.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

func misuse(kind error, op string, s State) *OpError {
	return &OpError{Kind: kind, Op: op, State: s}
}

func invalidState(op string, s State) *OpError {
	return misuse(ErrInvalidState, op, s)
}

func failure(kind error, op string, s State, cause error) *OpError {
	return &OpError{Kind: kind, Op: op, State: s, Err: cause}
}

// sourceOf maps a failure kind to the Error state source.
func sourceOf(kind error) ErrorSource {
	switch kind {
	case ErrPlaybackFailed:
		return SourcePlayback
	case ErrFileOperationFailed:
		return SourceFileOperation
	default:
		return SourceRecording
	}
}
