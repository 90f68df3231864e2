package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	*bytes.Reader
	rate int
}

func (s fakeSource) SampleRate() int { return s.rate }

// newTestPlayer returns a player whose decoder yields one second of
// silence at 16kHz stereo.
func newTestPlayer(t *testing.T) (*SpeakerPlayer, *fakeOpener, string) {
	t.Helper()

	p := NewSpeakerPlayer(nil)
	opener := &fakeOpener{}
	p.open = opener.open
	p.decode = func(io.Reader) (pcmSource, error) {
		return fakeSource{Reader: bytes.NewReader(make([]byte, 16000*4)), rate: 16000}, nil
	}

	path := filepath.Join(t.TempDir(), "memo.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3"), 0o600))

	return p, opener, path
}

func TestSpeakerPlayer_PlaysToCompletion(t *testing.T) {
	t.Parallel()

	p, opener, path := newTestPlayer(t)
	ctx := context.Background()

	var completed atomic.Int32
	p.OnCompleted(func() { completed.Add(1) })

	require.NoError(t, p.Start(ctx, path))
	dev := opener.last()
	assert.Equal(t, 2, dev.conf.PlaybackChannels)
	assert.Equal(t, 16000, dev.conf.SampleRate)

	dev.data(make([]byte, 32000))
	assert.Equal(t, 500*time.Millisecond, p.Position())

	require.NoError(t, p.Pause(ctx))
	started, _ := dev.state()
	assert.False(t, started)
	assert.Equal(t, 500*time.Millisecond, p.Position())

	require.NoError(t, p.Resume(ctx))
	started, _ = dev.state()
	assert.True(t, started)

	dev.data(make([]byte, 32000))
	assert.Equal(t, time.Second, p.Position())
	assert.Zero(t, completed.Load(), "not done until the source reports EOF")

	out := bytes.Repeat([]byte{0xAA}, 64)
	dev.data(out)
	assert.Equal(t, make([]byte, 64), out, "drained source plays silence")

	require.Eventually(t, func() bool { return completed.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, closed := dev.state()
	assert.True(t, closed)
	assert.Zero(t, p.Position())

	dev.data(out)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), completed.Load(), "completion is reported once")
}

func TestSpeakerPlayer_StopDoesNotComplete(t *testing.T) {
	t.Parallel()

	p, opener, path := newTestPlayer(t)
	ctx := context.Background()

	var completed atomic.Int32
	p.OnCompleted(func() { completed.Add(1) })

	require.NoError(t, p.Start(ctx, path))
	dev := opener.last()

	require.NoError(t, p.Stop(ctx))
	require.NoError(t, p.Stop(ctx), "stopping twice is a no-op")

	_, closed := dev.state()
	assert.True(t, closed)

	require.ErrorIs(t, p.Pause(ctx), ErrNotPlaying)
	require.ErrorIs(t, p.Resume(ctx), ErrNotPlaying)
	assert.Zero(t, completed.Load())
}

func TestSpeakerPlayer_StartReplacesPlayback(t *testing.T) {
	t.Parallel()

	p, opener, path := newTestPlayer(t)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx, path))
	first := opener.last()
	require.NoError(t, p.Start(ctx, path))

	_, closed := first.state()
	assert.True(t, closed)
	assert.NotSame(t, first, opener.last())
}

func TestSpeakerPlayer_Failures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		p, _, _ := newTestPlayer(t)
		err := p.Start(ctx, filepath.Join(t.TempDir(), "nope.mp3"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open")
	})

	t.Run("undecodable file", func(t *testing.T) {
		t.Parallel()

		p, _, path := newTestPlayer(t)
		p.decode = func(io.Reader) (pcmSource, error) { return nil, errors.New("bad frame") }

		err := p.Start(ctx, path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode")
	})

	t.Run("no speaker", func(t *testing.T) {
		t.Parallel()

		p, opener, path := newTestPlayer(t)
		opener.openErr = errors.New("no output device")

		err := p.Start(ctx, path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to start speaker")
		assert.Zero(t, p.Position())
	})

	t.Run("released", func(t *testing.T) {
		t.Parallel()

		p, _, path := newTestPlayer(t)
		require.NoError(t, p.Release())
		require.ErrorIs(t, p.Start(ctx, path), ErrReleased)
	})
}
