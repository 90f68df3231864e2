package voice

import (
	"fmt"
	"time"
)

// State is the coordinator's lifecycle state. Exactly one variant is
// current at any time.
//
// The set of variants is closed; type switches over State are checked for
// exhaustiveness by gochecksumtype.
//
//sumtype:decl
type State interface {
	fmt.Stringer
	isState()
}

// Idle means no recording is in progress and no file is owned.
type Idle struct{}

// Recording means capture is in progress.
type Recording struct {
	Elapsed time.Duration
}

// RecordingCompleted means capture just stopped. It is expected to be
// advanced to Preview or ReadyToSend right away.
type RecordingCompleted struct {
	Message VoiceMessage
}

// Preview means a completed recording is being auditioned. Position is
// the last polled playback position and is reset to zero on stop and on
// completion.
type Preview struct {
	Message  VoiceMessage
	Playing  bool
	Position time.Duration
}

// ReadyToSend means the user confirmed the message; ownership of the file
// is about to move to a sender.
type ReadyToSend struct {
	Message VoiceMessage
}

// Sending is hosted for an external upload pipeline.
type Sending struct {
	Message  VoiceMessage
	Progress float64
}

// Sent is hosted for an external upload pipeline.
type Sent struct {
	Message   VoiceMessage
	RemoteRef string
}

// SendFailed is hosted for an external upload pipeline.
type SendFailed struct {
	Message VoiceMessage
	Err     error
}

// Error means the last operation failed on the platform side. Message is
// the voice message that was in flight, if any, so it can be retried or
// deleted.
type Error struct {
	Err     *OpError
	Source  ErrorSource
	Message *VoiceMessage
}

func (Idle) isState()               {}
func (Recording) isState()          {}
func (RecordingCompleted) isState() {}
func (Preview) isState()            {}
func (ReadyToSend) isState()        {}
func (Sending) isState()            {}
func (Sent) isState()               {}
func (SendFailed) isState()         {}
func (Error) isState()              {}

func (Idle) String() string { return "Idle" }

func (s Recording) String() string {
	return fmt.Sprintf("Recording(elapsed=%s)", s.Elapsed)
}

func (s RecordingCompleted) String() string {
	return fmt.Sprintf("RecordingCompleted(%s)", s.Message.ID)
}

func (s Preview) String() string {
	return fmt.Sprintf("Preview(%s, playing=%t, position=%s)", s.Message.ID, s.Playing, s.Position)
}

func (s ReadyToSend) String() string {
	return fmt.Sprintf("ReadyToSend(%s)", s.Message.ID)
}

func (s Sending) String() string {
	return fmt.Sprintf("Sending(%s, %.0f%%)", s.Message.ID, s.Progress*100)
}

func (s Sent) String() string {
	return fmt.Sprintf("Sent(%s)", s.Message.ID)
}

func (s SendFailed) String() string {
	return fmt.Sprintf("SendFailed(%s: %v)", s.Message.ID, s.Err)
}

func (s Error) String() string {
	return fmt.Sprintf("Error(%s: %v)", s.Source, s.Err)
}

// ErrorSource names the subsystem an Error state came from.
type ErrorSource int

const (
	SourceRecording ErrorSource = iota
	SourcePlayback
	SourceFileOperation
	SourceNetwork
)

func (s ErrorSource) String() string {
	switch s {
	case SourceRecording:
		return "recording"
	case SourcePlayback:
		return "playback"
	case SourceFileOperation:
		return "file_operation"
	case SourceNetwork:
		return "network"
	default:
		return fmt.Sprintf("ErrorSource(%d)", int(s))
	}
}

// CurrentMessage returns the voice message a state refers to.
func CurrentMessage(s State) (VoiceMessage, bool) {
	switch st := s.(type) {
	case Idle, Recording:
		return VoiceMessage{}, false
	case RecordingCompleted:
		return st.Message, true
	case Preview:
		return st.Message, true
	case ReadyToSend:
		return st.Message, true
	case Sending:
		return st.Message, true
	case Sent:
		return st.Message, true
	case SendFailed:
		return st.Message, true
	case Error:
		if st.Message == nil {
			return VoiceMessage{}, false
		}
		return *st.Message, true
	}

	return VoiceMessage{}, false
}

// IsRecording reports whether capture is in progress.
func IsRecording(s State) bool {
	_, ok := s.(Recording)
	return ok
}

// IsPlaying reports whether a preview is currently playing.
func IsPlaying(s State) bool {
	p, ok := s.(Preview)
	return ok && p.Playing
}

func CanPlay(s State) bool {
	switch s.(type) {
	case Preview, ReadyToSend:
		return true
	case Idle, Recording, RecordingCompleted, Sending, Sent, SendFailed, Error:
		return false
	}

	return false
}

func CanSend(s State) bool {
	_, ok := s.(ReadyToSend)
	return ok
}

func CanDelete(s State) bool {
	switch s.(type) {
	case Preview, ReadyToSend, SendFailed:
		return true
	case Idle, Recording, RecordingCompleted, Sending, Sent, Error:
		return false
	}

	return false
}

// Snapshot is a flat rendering of a State for JSON and terminal output.
type Snapshot struct {
	Kind       string        `json:"kind"`
	ElapsedMs  int64         `json:"elapsedMs,omitempty"`
	Message    *VoiceMessage `json:"message,omitempty"`
	Playing    bool          `json:"playing,omitempty"`
	PositionMs int64         `json:"positionMs,omitempty"`
	Progress   float64       `json:"progress,omitempty"`
	RemoteRef  string        `json:"remoteRef,omitempty"`
	Source     string        `json:"source,omitempty"`
	Error      string        `json:"error,omitempty"`
}

const (
	KindIdle               = "idle"
	KindRecording          = "recording"
	KindRecordingCompleted = "recording_completed"
	KindPreview            = "preview"
	KindReadyToSend        = "ready_to_send"
	KindSending            = "sending"
	KindSent               = "sent"
	KindSendFailed         = "send_failed"
	KindError              = "error"
)

// SnapshotOf flattens s.
func SnapshotOf(s State) Snapshot {
	var snap Snapshot
	if m, ok := CurrentMessage(s); ok {
		snap.Message = &m
	}

	switch st := s.(type) {
	case Idle:
		snap.Kind = KindIdle
	case Recording:
		snap.Kind = KindRecording
		snap.ElapsedMs = st.Elapsed.Milliseconds()
	case RecordingCompleted:
		snap.Kind = KindRecordingCompleted
	case Preview:
		snap.Kind = KindPreview
		snap.Playing = st.Playing
		snap.PositionMs = st.Position.Milliseconds()
	case ReadyToSend:
		snap.Kind = KindReadyToSend
	case Sending:
		snap.Kind = KindSending
		snap.Progress = st.Progress
	case Sent:
		snap.Kind = KindSent
		snap.RemoteRef = st.RemoteRef
	case SendFailed:
		snap.Kind = KindSendFailed
		if st.Err != nil {
			snap.Error = st.Err.Error()
		}
	case Error:
		snap.Kind = KindError
		snap.Source = st.Source.String()
		if st.Err != nil {
			snap.Error = st.Err.Error()
		}
	}

	return snap
}
