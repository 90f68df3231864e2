package voicetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alkime/rapidvoice/internal/voice"
)

// ErrNoSession is returned by Pause and Resume when nothing was started, or
// the last session was stopped or completed.
var ErrNoSession = errors.New("voicetest: no playback session")

// Player is a fake voice.AudioPlayer. Position only moves when the test
// sets it, and playback only completes when the test calls Complete.
type Player struct {
	mu sync.Mutex

	errs        map[string]error
	onCompleted func()

	path     string
	playing  bool
	position time.Duration
	calls    []string
	released bool
}

var _ voice.AudioPlayer = (*Player)(nil)

func NewPlayer() *Player {
	return &Player{errs: make(map[string]error)}
}

// Fail makes the named method ("start", "pause", "resume", "stop") return
// err. A nil err clears it.
func (p *Player) Fail(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err == nil {
		delete(p.errs, method)
		return
	}
	p.errs[method] = err
}

func (p *Player) call(method string) error {
	p.calls = append(p.calls, method)
	return p.errs[method]
}

func (p *Player) Start(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.call("start"); err != nil {
		return err
	}
	p.path = path
	p.playing = true
	p.position = 0

	return nil
}

func (p *Player) Pause(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.call("pause"); err != nil {
		return err
	}
	if p.path == "" {
		return ErrNoSession
	}
	p.playing = false

	return nil
}

func (p *Player) Resume(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.call("resume"); err != nil {
		return err
	}
	if p.path == "" {
		return ErrNoSession
	}
	p.playing = true

	return nil
}

func (p *Player) Stop(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.call("stop")
	p.path = ""
	p.playing = false
	p.position = 0

	return err
}

func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// SetPosition moves the reported playback position.
func (p *Player) SetPosition(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = d
}

func (p *Player) OnCompleted(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCompleted = fn
}

// Complete simulates playback reaching the end of the file. The session
// ends, so a later Resume fails.
func (p *Player) Complete() {
	p.mu.Lock()
	fn := p.onCompleted
	p.path = ""
	p.playing = false
	p.position = 0
	p.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (p *Player) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, "release")
	p.released = true
	p.playing = false

	return nil
}

// Playing reports whether the fake is currently playing.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Path returns the file being played, or "" when stopped.
func (p *Player) Path() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path
}

func (p *Player) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *Player) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}
