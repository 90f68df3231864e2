package voice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alkime/rapidvoice/pkg/channels"
)

// Operation names used in OpError.Op and in logs.
const (
	opStartRecording  = "start recording"
	opStopRecording   = "stop recording"
	opDeleteRecording = "delete recording"
	opEnterPreview    = "enter preview"
	opPlay            = "play recording"
	opPause           = "pause playback"
	opResume          = "resume playback"
	opStopPlayback    = "stop playback"
	opMarkReady       = "mark ready to send"
	opDeleteMessage   = "delete message"
	opTransitionIdle  = "transition to idle"
)

// Config configures a Coordinator.
type Config struct {
	Recorder AudioRecorder
	Player   AudioPlayer
	Files    AudioFileManager

	// TickInterval is the refresh period for elapsed time and playback
	// position. Defaults to DefaultTickInterval.
	TickInterval time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	Callbacks Callbacks
}

// Coordinator owns the voice message lifecycle. It serializes every
// operation, publishes each state change exactly once and keeps the
// recorder and player consistent with the published state.
//
// All methods are safe for concurrent use.
type Coordinator struct {
	recorder AudioRecorder
	player   AudioPlayer
	files    AudioFileManager
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	// ops serializes operations. It protects tick, startedAt, paused and
	// borrowed.
	ops       sync.Mutex
	tick      *ticker
	startedAt time.Time

	// paused is set while the player holds a paused session that Resume
	// can continue.
	paused bool

	// borrowed marks a held message whose file is owned by the caller,
	// such as a history entry being replayed. Implicit deletes keep it.
	borrowed bool

	// session counts player Start, Resume and Stop calls. A completion
	// raised under an older session is dropped.
	session atomic.Uint64

	// mu serializes publishes. It protects released and callbacks.
	mu        sync.Mutex
	cell      *channels.Latest[State]
	released  bool
	callbacks Callbacks

	// completions tracks playback completion handlers.
	completions sync.WaitGroup
}

// New creates a Coordinator in the Idle state.
func New(cfg Config) (*Coordinator, error) {
	var errs []error
	if cfg.Recorder == nil {
		errs = append(errs, errors.New("recorder is required"))
	}
	if cfg.Player == nil {
		errs = append(errs, errors.New("player is required"))
	}
	if cfg.Files == nil {
		errs = append(errs, errors.New("file manager is required"))
	}
	if cfg.TickInterval < 0 {
		errs = append(errs, errors.New("tick interval must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	c := &Coordinator{
		recorder:  cfg.Recorder,
		player:    cfg.Player,
		files:     cfg.Files,
		interval:  cfg.TickInterval,
		now:       cfg.Now,
		logger:    cfg.Logger,
		cell:      channels.NewLatest[State](Idle{}),
		callbacks: cfg.Callbacks,
	}
	if c.interval == 0 {
		c.interval = DefaultTickInterval
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	c.player.OnCompleted(c.playbackCompleted)

	return c, nil
}

// State returns the current state.
func (c *Coordinator) State() State {
	return c.cell.Load()
}

// Watch streams state changes, starting with the current state. Slow
// readers only see the latest state. The channel closes when ctx is done
// or the coordinator is released.
func (c *Coordinator) Watch(ctx context.Context) (<-chan State, error) {
	ch, err := c.cell.Watch(ctx)
	if errors.Is(err, channels.ErrCellClosed) {
		return nil, misuse(ErrReleased, "watch", c.State())
	}

	return ch, err
}

// SetCallbacks replaces the lifecycle hooks.
func (c *Coordinator) SetCallbacks(cb Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.callbacks = cb
}

// StartRecording begins capturing a new message. It fails with
// ErrAlreadyRecording while a recording is in progress. A playing preview
// is stopped first.
func (c *Coordinator) StartRecording(ctx context.Context) error {
	return c.run(opStartRecording, func(out *[]notice) error {
		cur := c.State()
		switch st := cur.(type) {
		case Recording:
			return misuse(ErrAlreadyRecording, opStartRecording, cur)
		case Preview:
			if c.inSession(st) {
				if err := c.haltPlayback(ctx, opStartRecording, st); err != nil {
					return err
				}
				cur = c.State()
			}
		case Idle, RecordingCompleted, ReadyToSend, Sending, Sent, SendFailed, Error:
		}

		path, err := c.files.CreateRecordingFilePath()
		if err != nil {
			return c.fail(ctx, ErrRecordingFailed, opStartRecording, cur, err, nil)
		}
		if err := c.recorder.Start(ctx, path); err != nil {
			return c.fail(ctx, ErrRecordingFailed, opStartRecording, cur, err, nil)
		}

		startedAt := c.now()
		c.startedAt = startedAt
		c.publish(Recording{})
		c.startTicker(
			func() time.Duration { return c.now().Sub(startedAt) },
			func(cur State, elapsed time.Duration) (State, bool) {
				if _, ok := cur.(Recording); !ok {
					return nil, false
				}
				return Recording{Elapsed: max(elapsed, 0)}, true
			},
		)

		c.logger.Info("recording started", "path", path)
		*out = append(*out, recordingStarted())

		return nil
	})
}

// StopRecording finishes the current recording and returns its message.
func (c *Coordinator) StopRecording(ctx context.Context) (VoiceMessage, error) {
	var msg VoiceMessage
	err := c.run(opStopRecording, func(out *[]notice) error {
		cur := c.State()
		if _, ok := cur.(Recording); !ok {
			return invalidState(opStopRecording, cur)
		}

		c.stopTicker()
		raw, err := c.recorder.Stop(ctx)
		if err != nil {
			return c.fail(ctx, ErrRecordingFailed, opStopRecording, cur, err, nil)
		}
		if raw.Duration <= 0 {
			raw.Duration = c.now().Sub(c.startedAt)
		}

		msg = newMessage(raw, c.now())
		c.borrowed = false
		c.publish(RecordingCompleted{Message: msg})

		c.logger.Info("recording finished",
			"id", msg.ID,
			"path", msg.FilePath,
			"duration", msg.Duration,
			"bytes", msg.SizeBytes)
		*out = append(*out, recordingFinished(msg))

		return nil
	})
	if err != nil {
		return VoiceMessage{}, err
	}

	return msg, nil
}

// DeleteRecording discards the recording in progress or the current
// message, and returns to Idle.
func (c *Coordinator) DeleteRecording(ctx context.Context) error {
	return c.run(opDeleteRecording, func(out *[]notice) error {
		cur := c.State()
		switch st := cur.(type) {
		case Recording:
			c.stopTicker()
			path := c.recorder.CurrentFilePath()
			if _, err := c.recorder.Stop(ctx); err != nil {
				return c.fail(ctx, ErrRecordingFailed, opDeleteRecording, cur, err, nil)
			}
			if path != "" && !c.recorder.Delete(path) {
				c.logger.Warn("partial recording not removed", "path", path)
			}
		case Preview:
			if c.inSession(st) {
				if err := c.haltPlayback(ctx, opDeleteRecording, st); err != nil {
					return err
				}
			}
			if err := c.discard(ctx, opDeleteRecording, c.State(), st.Message); err != nil {
				return err
			}
		case RecordingCompleted:
			if err := c.discard(ctx, opDeleteRecording, cur, st.Message); err != nil {
				return err
			}
		case ReadyToSend:
			if err := c.discard(ctx, opDeleteRecording, cur, st.Message); err != nil {
				return err
			}
		case Idle, Sending, Sent, SendFailed, Error:
			return invalidState(opDeleteRecording, cur)
		}

		c.toIdle()
		c.logger.Info("recording deleted")
		*out = append(*out, recordingCancelled())

		return nil
	})
}

// EnterPreviewMode shows msg in Preview without starting playback.
func (c *Coordinator) EnterPreviewMode(msg VoiceMessage) error {
	return c.run(opEnterPreview, func(_ *[]notice) error {
		cur := c.State()
		switch cur.(type) {
		case RecordingCompleted, ReadyToSend:
			c.lend(cur, msg)
			c.paused = false
			c.publish(Preview{Message: msg})
			return nil
		case Idle, Recording, Preview, Sending, Sent, SendFailed, Error:
		}

		return invalidState(opEnterPreview, cur)
	})
}

// PlayRecording starts playing msg from the beginning. Any playback in
// progress is stopped first.
func (c *Coordinator) PlayRecording(ctx context.Context, msg VoiceMessage) error {
	return c.run(opPlay, func(out *[]notice) error {
		cur := c.State()
		switch st := cur.(type) {
		case Preview:
			if c.inSession(st) {
				c.stopTicker()
				err := c.player.Stop(ctx)
				c.nextSession()
				if err != nil {
					return c.fail(ctx, ErrPlaybackFailed, opPlay, cur, err, &st.Message)
				}
			}
		case Idle, RecordingCompleted, ReadyToSend:
		case Recording, Sending, Sent, SendFailed, Error:
			return invalidState(opPlay, cur)
		}

		c.lend(cur, msg)
		c.paused = false
		err := c.player.Start(ctx, msg.FilePath)
		c.nextSession()
		if err != nil {
			return c.fail(ctx, ErrPlaybackFailed, opPlay, cur, err, &msg)
		}

		c.publish(Preview{Message: msg, Playing: true})
		c.startPositionTicker(msg)

		c.logger.Info("playback started", "id", msg.ID, "path", msg.FilePath)
		*out = append(*out, previewStarted(msg))

		return nil
	})
}

// PausePlayback pauses a playing preview. It is a no-op when the preview
// is already paused.
func (c *Coordinator) PausePlayback(ctx context.Context) error {
	return c.run(opPause, func(out *[]notice) error {
		cur := c.State()
		st, ok := cur.(Preview)
		if !ok {
			return invalidState(opPause, cur)
		}
		if !st.Playing {
			return nil
		}

		c.stopTicker()
		if err := c.player.Pause(ctx); err != nil {
			return c.fail(ctx, ErrPlaybackFailed, opPause, cur, err, &st.Message)
		}

		c.paused = true
		pos := clampPosition(c.player.Position(), st.Message.Duration)
		c.publish(Preview{Message: st.Message, Position: pos})
		*out = append(*out, previewPaused(st.Message))

		return nil
	})
}

// ResumePlayback resumes a paused preview. A preview that was stopped,
// completed or never played starts again from the beginning. It is a no-op
// when the preview is already playing.
func (c *Coordinator) ResumePlayback(ctx context.Context) error {
	return c.run(opResume, func(out *[]notice) error {
		cur := c.State()
		st, ok := cur.(Preview)
		if !ok {
			return invalidState(opResume, cur)
		}
		if st.Playing {
			return nil
		}

		var err error
		pos := st.Position
		if c.paused {
			err = c.player.Resume(ctx)
		} else {
			err = c.player.Start(ctx, st.Message.FilePath)
			pos = 0
		}
		c.nextSession()
		c.paused = false
		if err != nil {
			return c.fail(ctx, ErrPlaybackFailed, opResume, cur, err, &st.Message)
		}

		c.publish(Preview{Message: st.Message, Playing: true, Position: pos})
		c.startPositionTicker(st.Message)
		*out = append(*out, previewStarted(st.Message))

		return nil
	})
}

// StopPlayback stops a playing preview and rewinds it. It is a no-op in
// every other state.
func (c *Coordinator) StopPlayback(ctx context.Context) error {
	return c.run(opStopPlayback, func(_ *[]notice) error {
		st, ok := c.State().(Preview)
		if !ok || !st.Playing {
			return nil
		}

		return c.haltPlayback(ctx, opStopPlayback, st)
	})
}

// MarkReadyToSend confirms msg for sending. A playing preview is stopped
// first. A borrowed message was already sent and is rejected.
func (c *Coordinator) MarkReadyToSend(ctx context.Context, msg VoiceMessage) error {
	return c.run(opMarkReady, func(out *[]notice) error {
		cur := c.State()
		switch st := cur.(type) {
		case Preview:
			if c.borrowed {
				return invalidState(opMarkReady, cur)
			}
			if c.inSession(st) {
				if err := c.haltPlayback(ctx, opMarkReady, st); err != nil {
					return err
				}
			}
		case RecordingCompleted:
		case Idle, Recording, ReadyToSend, Sending, Sent, SendFailed, Error:
			return invalidState(opMarkReady, cur)
		}

		c.publish(ReadyToSend{Message: msg})
		*out = append(*out, readyToSend(msg))

		return nil
	})
}

// DeleteMessage removes msg's file. It reports false when the file was
// already gone. The coordinator returns to Idle only when msg was the
// message it held; deleting an unrelated file leaves the state alone.
func (c *Coordinator) DeleteMessage(ctx context.Context, msg VoiceMessage) (bool, error) {
	var deleted bool
	err := c.run(opDeleteMessage, func(out *[]notice) error {
		cur := c.State()
		if st, ok := cur.(Preview); ok && c.inSession(st) && st.Message.ID == msg.ID {
			if err := c.haltPlayback(ctx, opDeleteMessage, st); err != nil {
				return err
			}
			cur = c.State()
		}

		ok, err := c.files.DeleteRecording(msg.FilePath)
		if err != nil {
			return c.fail(ctx, ErrFileOperationFailed, opDeleteMessage, cur, err, &msg)
		}
		if !ok {
			return nil
		}

		deleted = true
		if holds(cur, msg) {
			c.stopTicker()
			c.toIdle()
		}

		c.logger.Info("message deleted", "id", msg.ID, "path", msg.FilePath)
		*out = append(*out, recordingCancelled())

		return nil
	})

	return deleted, err
}

// holds reports whether deleting msg leaves cur without a live file.
func holds(cur State, msg VoiceMessage) bool {
	switch cur.(type) {
	case Idle, Recording:
		return false
	case RecordingCompleted, Preview, ReadyToSend, Sending, Sent, SendFailed, Error:
	}

	live, ok := CurrentMessage(cur)

	return !ok || live.ID == msg.ID
}

// TransitionToIdle returns to Idle without deleting any file. Ownership of
// the current file passes to the caller. Playback and capture are stopped
// on a best-effort basis.
func (c *Coordinator) TransitionToIdle(ctx context.Context) {
	_ = c.run(opTransitionIdle, func(_ *[]notice) error {
		cur := c.State()
		switch st := cur.(type) {
		case Idle:
			return nil
		case Recording:
			c.stopTicker()
			if _, err := c.recorder.Stop(ctx); err != nil {
				c.logger.Warn("stop recording on idle transition", "error", err)
			}
		case Preview:
			if c.inSession(st) {
				c.stopTicker()
				err := c.player.Stop(ctx)
				c.nextSession()
				if err != nil {
					c.logger.Warn("stop playback on idle transition", "error", err)
				}
			}
		case RecordingCompleted, ReadyToSend, Sending, Sent, SendFailed, Error:
		}

		c.stopTicker()
		c.toIdle()

		return nil
	})
}

// Reset discards whatever the coordinator holds and returns to Idle.
// Failures are reported to OnError and logged, never returned.
//
// A borrowed message, one the caller handed in for playback, is never
// deleted here; the coordinator only lets go of it.
func (c *Coordinator) Reset(ctx context.Context) {
	cur := c.State()
	if c.holdsBorrowed() {
		c.TransitionToIdle(ctx)
		return
	}
	if msg, ok := CurrentMessage(cur); ok {
		if _, err := c.DeleteMessage(ctx, msg); err != nil {
			c.logger.Warn("reset: delete message", "error", err)
		}
	} else if IsRecording(cur) {
		if err := c.DeleteRecording(ctx); err != nil {
			c.logger.Warn("reset: delete recording", "error", err)
		}
	}

	if _, ok := c.State().(Idle); !ok {
		c.TransitionToIdle(ctx)
	}
}

// Release stops all background work and frees the recorder and player.
// No state is published afterwards and later operations fail with
// ErrReleased. Multiple calls are safe.
func (c *Coordinator) Release() error {
	c.ops.Lock()

	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		c.ops.Unlock()
		return nil
	}
	c.released = true
	c.mu.Unlock()

	c.stopTicker()

	var errs []error
	if err := c.recorder.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := c.player.Release(); err != nil {
		errs = append(errs, err)
	}
	c.ops.Unlock()

	c.completions.Wait()
	c.cell.Close()

	err := errors.Join(errs...)
	if err != nil {
		c.logger.Warn("release", "error", err)
	}
	c.logger.Debug("coordinator released")

	return err
}

// run executes fn under the operation lock and dispatches its notices
// once the lock is released. Any error is also reported to OnError.
func (c *Coordinator) run(op string, fn func(out *[]notice) error) error {
	var notices []notice

	c.ops.Lock()
	var err error
	if c.isReleased() {
		err = misuse(ErrReleased, op, c.State())
	} else {
		err = fn(&notices)
	}
	c.ops.Unlock()

	if err != nil {
		notices = append(notices, errored(err))
	}
	if len(notices) > 0 {
		cb := c.currentCallbacks()
		for _, n := range notices {
			n(cb)
		}
	}

	return err
}

func (c *Coordinator) holdsBorrowed() bool {
	c.ops.Lock()
	defer c.ops.Unlock()

	_, ok := CurrentMessage(c.State())

	return ok && c.borrowed
}

func (c *Coordinator) isReleased() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.released
}

func (c *Coordinator) currentCallbacks() Callbacks {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.callbacks
}

// publish stores s as the current state. Must be called with c.ops held.
func (c *Coordinator) publish(s State) {
	c.mu.Lock()
	c.cell.Store(s)
	c.mu.Unlock()

	c.logger.Debug("state", "state", s.String())
}

// fail publishes an Error state for a platform failure and returns the
// error. The failing subsystem is stopped first so no device handle is
// left running behind the Error state.
func (c *Coordinator) fail(
	ctx context.Context, kind error, op string, cur State, cause error, msg *VoiceMessage,
) error {
	err := failure(kind, op, cur, cause)

	c.stopTicker()
	switch kind {
	case ErrRecordingFailed:
		if c.recorder.CurrentFilePath() != "" {
			if _, serr := c.recorder.Stop(ctx); serr != nil {
				c.logger.Debug("stop recorder after failure", "error", serr)
			}
		}
	case ErrPlaybackFailed:
		serr := c.player.Stop(ctx)
		c.nextSession()
		c.paused = false
		if serr != nil {
			c.logger.Debug("stop player after failure", "error", serr)
		}
	}

	if msg == nil {
		if m, ok := CurrentMessage(cur); ok {
			msg = &m
		}
	}

	c.publish(Error{Err: err, Source: sourceOf(kind), Message: msg})
	c.logger.Warn("voice operation failed", "op", op, "error", err)

	return err
}

// haltPlayback stops a playing preview and publishes it rewound.
func (c *Coordinator) haltPlayback(ctx context.Context, op string, st Preview) error {
	c.stopTicker()
	err := c.player.Stop(ctx)
	c.nextSession()
	c.paused = false
	if err != nil {
		return c.fail(ctx, ErrPlaybackFailed, op, st, err, &st.Message)
	}

	c.publish(Preview{Message: st.Message})

	return nil
}

// inSession reports whether the player holds a session for st, playing or
// paused. Must be called with c.ops held.
func (c *Coordinator) inSession(st Preview) bool {
	return st.Playing || c.paused
}

// nextSession invalidates completions raised by earlier player sessions.
// Must be called with c.ops held, after the player call it follows.
func (c *Coordinator) nextSession() {
	c.session.Add(1)
}

// lend records whether msg, about to be shown in Preview, is owned by the
// caller rather than by the coordinator. Must be called with c.ops held.
func (c *Coordinator) lend(cur State, msg VoiceMessage) {
	held, ok := CurrentMessage(cur)
	if !ok || held.ID != msg.ID {
		c.borrowed = true
	}
}

// toIdle publishes Idle and forgets the held message. Must be called with
// c.ops held.
func (c *Coordinator) toIdle() {
	c.borrowed = false
	c.paused = false
	c.publish(Idle{})
}

// discard removes msg's file unless the message is borrowed.
func (c *Coordinator) discard(ctx context.Context, op string, cur State, msg VoiceMessage) error {
	if c.borrowed {
		c.logger.Debug("borrowed recording kept", "id", msg.ID, "path", msg.FilePath)
		return nil
	}

	return c.removeFile(ctx, op, cur, msg)
}

// removeFile deletes a message file owned by the coordinator. A file that
// is already gone is not an error.
func (c *Coordinator) removeFile(ctx context.Context, op string, cur State, msg VoiceMessage) error {
	ok, err := c.files.DeleteRecording(msg.FilePath)
	if err != nil {
		return c.fail(ctx, ErrFileOperationFailed, op, cur, err, &msg)
	}
	if !ok {
		c.logger.Debug("recording already removed", "path", msg.FilePath)
	}

	return nil
}

func (c *Coordinator) startPositionTicker(msg VoiceMessage) {
	c.startTicker(c.player.Position, func(cur State, pos time.Duration) (State, bool) {
		p, ok := cur.(Preview)
		if !ok || !p.Playing || p.Message.ID != msg.ID {
			return nil, false
		}

		pos = clampPosition(pos, msg.Duration)
		if pos == p.Position {
			return nil, true
		}
		p.Position = pos

		return p, true
	})
}

// playbackCompleted runs on the player's goroutine. The state change is
// handed to a tracked goroutine so the player is never blocked on the
// operation lock.
func (c *Coordinator) playbackCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return
	}

	session := c.session.Load()
	c.completions.Go(func() { c.finishPlayback(session) })
}

func (c *Coordinator) finishPlayback(session uint64) {
	var notices []notice

	c.ops.Lock()
	if !c.isReleased() && session == c.session.Load() {
		// the session is over even if a pause got in first
		c.paused = false
		if st, ok := c.State().(Preview); ok && st.Playing {
			c.stopTicker()
			c.publish(Preview{Message: st.Message})
			c.logger.Info("playback completed", "id", st.Message.ID)
			notices = append(notices, previewCompleted(st.Message))
		}
	}
	c.ops.Unlock()

	cb := c.currentCallbacks()
	for _, n := range notices {
		n(cb)
	}
}
