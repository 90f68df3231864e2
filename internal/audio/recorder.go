package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/alkime/rapidvoice/internal/voice"
	"github.com/alkime/rapidvoice/pkg/channels"
)

var (
	ErrAlreadyCapturing = errors.New("audio: already capturing")
	ErrNotCapturing     = errors.New("audio: not capturing")
	ErrNotPlaying       = errors.New("audio: nothing is playing")
	ErrReleased         = errors.New("audio: released")
)

// device is the slice of a malgo device the recorder and player drive.
type device interface {
	start() error
	stop() error
	close() error
}

type deviceOpener func(conf DeviceConfig, data func([]byte)) (device, error)

func openMalgoCapture(conf DeviceConfig, data func([]byte)) (device, error) {
	h, err := openCapture(conf, data)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// MicRecorder captures the default microphone to an MP3 file. It
// implements voice.AudioRecorder.
type MicRecorder struct {
	device  DeviceConfig
	encoder EncoderConfig
	logger  *slog.Logger
	open    deviceOpener
	levels  *SampleRingBuffer

	mu       sync.Mutex
	session  *captureSession
	released bool
}

var _ voice.AudioRecorder = (*MicRecorder)(nil)

// NewMicRecorder returns a recorder encoding with cfg. Zero fields take
// their defaults.
func NewMicRecorder(cfg EncoderConfig, logger *slog.Logger) (*MicRecorder, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoder config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &MicRecorder{
		device:  CaptureConfig(cfg.SampleRate),
		encoder: cfg,
		logger:  logger,
		open:    openMalgoCapture,
		// 100ms of audio for the level meter
		levels: NewSampleRingBuffer(cfg.SampleRate / 10),
	}, nil
}

// captureSession is one recording from Start to Stop.
type captureSession struct {
	path    string
	file    *os.File
	dev     device
	dataC   chan []byte
	enc     *StreamingEncoder
	cancel  context.CancelFunc
	dropped atomic.Int64
}

func (s *captureSession) push(levels *SampleRingBuffer, samples []byte) {
	// malgo reuses its buffer once the callback returns
	buf := append([]byte(nil), samples...)
	levels.Write(BytesToInt16(buf))

	if err := channels.SendNonBlock(s.dataC, buf); err != nil {
		s.dropped.Add(1)
	}
}

func (r *MicRecorder) Start(ctx context.Context, outputPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return ErrReleased
	}
	if r.session != nil {
		return ErrAlreadyCapturing
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create recording file %s: %w", outputPath, err)
	}

	dataC := make(chan []byte, 64)
	enc, err := NewStreamingEncoder(r.encoder, dataC, file)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(outputPath)
		return err
	}
	enc.logger = r.logger

	// the capture outlives the request that started it
	encCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := enc.Start(encCtx); err != nil {
		cancel()
		_ = file.Close()
		_ = os.Remove(outputPath)
		return err
	}

	s := &captureSession{
		path:   outputPath,
		file:   file,
		dataC:  dataC,
		enc:    enc,
		cancel: cancel,
	}

	r.levels.Reset()
	levels := r.levels
	dev, err := r.open(r.device, func(samples []byte) { s.push(levels, samples) })
	if err == nil {
		if err = dev.start(); err != nil {
			_ = dev.close()
		}
	}
	if err != nil {
		close(dataC)
		_ = enc.Wait()
		cancel()
		_ = file.Close()
		_ = os.Remove(outputPath)
		return fmt.Errorf("failed to start microphone: %w", err)
	}

	s.dev = dev
	r.session = s
	r.logger.Debug("microphone capture started", "path", outputPath, "sampleRate", r.encoder.SampleRate)

	return nil
}

// Stop ends the capture, flushes the encoder and reports the file. The
// device is released even when Stop returns an error.
func (r *MicRecorder) Stop(ctx context.Context) (voice.RawRecording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.session
	if s == nil {
		return voice.RawRecording{}, ErrNotCapturing
	}
	r.session = nil

	return r.finish(ctx, s)
}

func (r *MicRecorder) finish(ctx context.Context, s *captureSession) (voice.RawRecording, error) {
	// no data callback runs once the device is closed
	devErr := s.dev.close()
	close(s.dataC)

	done := make(chan error, 1)
	go func() { done <- s.enc.Wait() }()

	var encErr error
	select {
	case encErr = <-done:
	case <-ctx.Done():
		s.cancel()
		encErr = <-done
	}
	s.cancel()

	closeErr := s.file.Close()
	if err := errors.Join(devErr, encErr, closeErr); err != nil {
		return voice.RawRecording{}, fmt.Errorf("failed to finish recording %s: %w", s.path, err)
	}

	if n := s.dropped.Load(); n > 0 {
		r.logger.Warn("dropped audio buffers", "count", n, "path", s.path)
	}

	var size int64
	if info, err := os.Stat(s.path); err == nil {
		size = info.Size()
	}

	return voice.RawRecording{
		FilePath:  s.path,
		Duration:  s.enc.Duration(),
		SizeBytes: size,
	}, nil
}

func (r *MicRecorder) CurrentFilePath() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return ""
	}
	return r.session.path
}

func (r *MicRecorder) Delete(path string) bool {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.logger.Warn("failed to delete recording", "path", path, "error", err)
	}

	return err == nil
}

// Level returns the input level of the last 100ms in [0, 1].
func (r *MicRecorder) Level() float64 {
	return r.levels.Level(r.encoder.SampleRate / 10)
}

// Release stops any capture in progress. The partial file is kept.
func (r *MicRecorder) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return nil
	}
	r.released = true

	if r.session == nil {
		return nil
	}

	s := r.session
	r.session = nil
	_, err := r.finish(context.Background(), s)

	return err
}
