package voice

import (
	"time"

	"github.com/google/uuid"
)

// VoiceMessage is a finished recording. It is created once, when a
// recording stops, and every later state refers to the same value.
type VoiceMessage struct {
	ID        string        `json:"id"`
	FilePath  string        `json:"filePath"`
	Duration  time.Duration `json:"duration"`
	SizeBytes int64         `json:"sizeBytes"`
	CreatedAt time.Time     `json:"createdAt"`
}

// RawRecording is what an AudioRecorder reports when capture stops.
type RawRecording struct {
	FilePath  string
	Duration  time.Duration
	SizeBytes int64
}

func newMessage(raw RawRecording, now time.Time) VoiceMessage {
	return VoiceMessage{
		ID:        uuid.NewString(),
		FilePath:  raw.FilePath,
		Duration:  max(raw.Duration, 0),
		SizeBytes: max(raw.SizeBytes, 0),
		CreatedAt: now,
	}
}
