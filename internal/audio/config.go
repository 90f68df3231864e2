package audio

import (
	"github.com/gen2brain/malgo"
)

// DeviceConfig describes the PCM format negotiated with the audio backend.
type DeviceConfig struct {
	Format           malgo.FormatType
	CaptureChannels  int
	PlaybackChannels int
	SampleRate       int
}

// CaptureConfig returns the format voice memos are recorded in: S16LE mono.
func CaptureConfig(sampleRate int) DeviceConfig {
	return DeviceConfig{
		Format:          malgo.FormatS16,
		CaptureChannels: DefaultChannels,
		SampleRate:      sampleRate,
	}
}

// PlaybackConfig returns the format decoded MP3 audio is played in.
// The decoder always yields S16LE stereo.
func PlaybackConfig(sampleRate int) DeviceConfig {
	return DeviceConfig{
		Format:           malgo.FormatS16,
		PlaybackChannels: 2,
		SampleRate:       sampleRate,
	}
}
