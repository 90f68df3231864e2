package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alkime/rapidvoice/internal/voice"
	"github.com/hajimehoshi/go-mp3"
)

// pcmSource is decoded S16LE stereo audio.
type pcmSource interface {
	io.Reader
	SampleRate() int
}

func decodeMP3(r io.Reader) (pcmSource, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	return dec, nil
}

func openMalgoPlayback(conf DeviceConfig, fill func([]byte)) (device, error) {
	h, err := openPlayback(conf, fill)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// SpeakerPlayer plays MP3 files on the default output device. It
// implements voice.AudioPlayer.
type SpeakerPlayer struct {
	logger *slog.Logger
	open   deviceOpener
	decode func(io.Reader) (pcmSource, error)

	mu          sync.Mutex
	current     *playback
	onCompleted func()
	released    bool
}

var _ voice.AudioPlayer = (*SpeakerPlayer)(nil)

func NewSpeakerPlayer(logger *slog.Logger) *SpeakerPlayer {
	if logger == nil {
		logger = slog.Default()
	}

	return &SpeakerPlayer{
		logger: logger,
		open:   openMalgoPlayback,
		decode: decodeMP3,
	}
}

// playback is one file from Start until it ends or is stopped.
type playback struct {
	file           io.Closer
	src            pcmSource
	dev            device
	bytesPerSecond int64
	played         atomic.Int64
	ended          atomic.Bool
	onEnd          func(*playback)
}

// fill runs on the audio thread. Once the source is drained it writes
// silence and reports the end exactly once.
func (pb *playback) fill(out []byte) {
	if pb.ended.Load() {
		clear(out)
		return
	}

	n, err := io.ReadFull(pb.src, out)
	pb.played.Add(int64(n))
	if n < len(out) {
		clear(out[n:])
	}

	if err != nil && pb.ended.CompareAndSwap(false, true) {
		// the device cannot be torn down from its own callback
		go pb.onEnd(pb)
	}
}

func (pb *playback) close() error {
	return errors.Join(pb.dev.close(), pb.file.Close())
}

func (p *SpeakerPlayer) Start(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return ErrReleased
	}
	p.stopLocked()

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	src, err := p.decode(file)
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	pb := &playback{
		file:           file,
		src:            src,
		bytesPerSecond: int64(src.SampleRate()) * 4,
		onEnd:          p.ended,
	}

	dev, err := p.open(PlaybackConfig(src.SampleRate()), pb.fill)
	if err == nil {
		if err = dev.start(); err != nil {
			_ = dev.close()
		}
	}
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to start speaker: %w", err)
	}

	pb.dev = dev
	p.current = pb
	p.logger.Debug("playback started", "path", path, "sampleRate", src.SampleRate())

	return nil
}

func (p *SpeakerPlayer) ended(pb *playback) {
	p.mu.Lock()
	if p.current != pb {
		p.mu.Unlock()
		return
	}
	p.current = nil
	if err := pb.close(); err != nil {
		p.logger.Warn("failed to close finished playback", "error", err)
	}
	fn := p.onCompleted
	p.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (p *SpeakerPlayer) Pause(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return ErrNotPlaying
	}

	return p.current.dev.stop()
}

func (p *SpeakerPlayer) Resume(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return ErrNotPlaying
	}

	return p.current.dev.start()
}

// Stop ends playback without reporting completion.
func (p *SpeakerPlayer) Stop(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stopLocked()
}

func (p *SpeakerPlayer) stopLocked() error {
	if p.current == nil {
		return nil
	}

	pb := p.current
	p.current = nil

	return pb.close()
}

func (p *SpeakerPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return 0
	}

	return pcmDuration(p.current.played.Load(), p.current.bytesPerSecond)
}

func (p *SpeakerPlayer) OnCompleted(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.onCompleted = fn
}

func (p *SpeakerPlayer) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.released = true

	return p.stopLocked()
}
