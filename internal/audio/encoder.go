package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mp3encoder "github.com/braheezy/shine-mp3/pkg/mp3"
)

// StreamingEncoder reads S16LE mono PCM from a channel, buffers it up to a
// threshold and encodes each batch to MP3 frames on an io.Writer.
//
// Encoding stops when the input channel is closed (the remaining buffer is
// flushed) or when the context is cancelled.
type StreamingEncoder struct {
	config EncoderConfig
	input  <-chan []byte
	output io.Writer
	logger *slog.Logger

	encoder *mp3encoder.Encoder
	buffer  []byte
	encoded atomic.Int64

	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

// NewStreamingEncoder validates config and returns an encoder that has not
// started yet.
func NewStreamingEncoder(
	config EncoderConfig,
	input <-chan []byte,
	output io.Writer,
) (*StreamingEncoder, error) {
	if input == nil {
		return nil, errors.New("input channel cannot be nil")
	}

	if output == nil {
		return nil, errors.New("output writer cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoder config: %w", err)
	}

	return &StreamingEncoder{ //nolint:exhaustruct // encoder, wg, errOnce, err set on Start()
		config: config,
		input:  input,
		output: output,
		logger: slog.Default(),
		buffer: make([]byte, 0, config.BufferThreshold),
	}, nil
}

// Start launches the encoding goroutine. It fails if called twice.
func (e *StreamingEncoder) Start(ctx context.Context) error {
	if e.encoder != nil {
		return errors.New("encoder already started")
	}

	// shine-mp3 mis-strides mono input, so the encoder is always stereo
	e.encoder = mp3encoder.NewEncoder(e.config.SampleRate, 2)

	e.wg.Go(func() {
		defer func() {
			if err := e.flush(); err != nil {
				e.setError(fmt.Errorf("failed to flush encoder on shutdown: %w", err))
			}
		}()

		for {
			select {
			case data, ok := <-e.input:
				if !ok {
					return
				}

				e.buffer = append(e.buffer, data...)
				if len(e.buffer) >= e.config.BufferThreshold {
					if err := e.encodeBatch(); err != nil {
						e.setError(err)
						return
					}
				}

			case <-ctx.Done():
				e.setError(fmt.Errorf("encoder context cancelled: %w", ctx.Err()))
				return
			}
		}
	})

	return nil
}

// encodeBatch encodes the buffered PCM and clears the buffer.
func (e *StreamingEncoder) encodeBatch() error {
	// an odd trailing byte is carried to the next batch
	usable := len(e.buffer) &^ 1
	if usable == 0 {
		return nil
	}

	stereo := monoToStereo(BytesToInt16(e.buffer[:usable]))

	e.logger.Debug("encoding MP3 batch", "monoSamples", usable/bytesPerSample, "stereoSamples", len(stereo))

	if err := e.encoder.Write(e.output, stereo); err != nil {
		return fmt.Errorf("failed to encode audio to MP3: %w", err)
	}

	e.encoded.Add(int64(usable))
	rest := copy(e.buffer, e.buffer[usable:])
	e.buffer = e.buffer[:rest]

	return nil
}

func (e *StreamingEncoder) flush() error {
	if err := e.encodeBatch(); err != nil {
		return fmt.Errorf("failed to flush MP3 encoder: %w", err)
	}

	return nil
}

// Wait blocks until encoding completes and returns the first error.
func (e *StreamingEncoder) Wait() error {
	e.wg.Wait()

	return e.err
}

// BytesEncoded returns the number of PCM bytes encoded so far.
func (e *StreamingEncoder) BytesEncoded() int64 {
	return e.encoded.Load()
}

// Duration returns the length of the audio encoded so far.
func (e *StreamingEncoder) Duration() time.Duration {
	return pcmDuration(e.BytesEncoded(), e.config.bytesPerSecond())
}

func (e *StreamingEncoder) setError(err error) {
	e.errOnce.Do(func() {
		e.err = err
		e.logger.Debug("streaming encoder error", "error", err)
	})
}

func monoToStereo(mono []int16) []int16 {
	stereo := make([]int16, len(mono)*2)
	for i, sample := range mono {
		stereo[i*2] = sample
		stereo[i*2+1] = sample
	}

	return stereo
}

func pcmDuration(n, bytesPerSecond int64) time.Duration {
	if bytesPerSecond <= 0 {
		return 0
	}

	return time.Duration(n) * time.Second / time.Duration(bytesPerSecond)
}
