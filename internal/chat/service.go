package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alkime/rapidvoice/internal/voice"
	"github.com/google/uuid"
)

var (
	ErrNothingToSend = errors.New("no voice message to send")
	ErrEmptyMessage  = errors.New("message is empty")
	ErrNotVoice      = errors.New("message has no audio")
)

// VoiceControl is the part of the voice coordinator the chat service
// drives.
type VoiceControl interface {
	State() voice.State
	StopRecording(ctx context.Context) (voice.VoiceMessage, error)
	MarkReadyToSend(ctx context.Context, msg voice.VoiceMessage) error
	TransitionToIdle(ctx context.Context)
	PlayRecording(ctx context.Context, msg voice.VoiceMessage) error
	DeleteMessage(ctx context.Context, msg voice.VoiceMessage) (bool, error)
}

// Service sends the coordinator's messages into the history and plays or
// deletes them later.
type Service struct {
	voice  VoiceControl
	store  *Store
	now    func() time.Time
	logger *slog.Logger
}

func NewService(vc VoiceControl, store *Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{voice: vc, store: store, now: time.Now, logger: logger}
}

// SendCurrent hands the coordinator's current message to the history. A
// recording in progress is finished first. If the message cannot be
// stored the coordinator stays ReadyToSend and keeps the file.
func (s *Service) SendCurrent(ctx context.Context) (Message, error) {
	cur := s.voice.State()

	var vm voice.VoiceMessage
	if voice.IsRecording(cur) {
		m, err := s.voice.StopRecording(ctx)
		if err != nil {
			return Message{}, err
		}
		vm = m
	} else {
		m, ok := voice.CurrentMessage(cur)
		if !ok {
			return Message{}, ErrNothingToSend
		}
		vm = m
	}

	if !voice.CanSend(s.voice.State()) {
		if err := s.voice.MarkReadyToSend(ctx, vm); err != nil {
			return Message{}, err
		}
	}

	msg := Message{
		ID:     uuid.NewString(),
		Kind:   KindVoice,
		Voice:  &vm,
		SentAt: s.now(),
	}
	if err := s.store.Insert(ctx, msg); err != nil {
		return Message{}, fmt.Errorf("send voice message: %w", err)
	}

	// the history owns the file from here on
	s.voice.TransitionToIdle(ctx)
	s.logger.Info("voice message sent", "id", msg.ID, "voiceId", vm.ID, "duration", vm.Duration)

	return msg, nil
}

// SendText stores a text message.
func (s *Service) SendText(ctx context.Context, content string) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrEmptyMessage
	}

	msg := Message{
		ID:      uuid.NewString(),
		Kind:    KindText,
		Content: content,
		SentAt:  s.now(),
	}
	if err := s.store.Insert(ctx, msg); err != nil {
		return Message{}, fmt.Errorf("send text message: %w", err)
	}

	return msg, nil
}

func (s *Service) List(ctx context.Context) ([]Message, error) {
	return s.store.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (Message, error) {
	return s.store.Get(ctx, id)
}

// Play starts playback of a sent voice message.
func (s *Service) Play(ctx context.Context, id string) error {
	msg, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if msg.Voice == nil {
		return fmt.Errorf("%w: %s", ErrNotVoice, id)
	}

	return s.voice.PlayRecording(ctx, *msg.Voice)
}

// Delete removes a message and, for voice messages, its audio file. The
// history entry is kept when the file cannot be removed.
func (s *Service) Delete(ctx context.Context, id string) error {
	msg, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if msg.Voice != nil {
		removed, err := s.voice.DeleteMessage(ctx, *msg.Voice)
		if err != nil {
			return fmt.Errorf("delete audio for %s: %w", id, err)
		}
		if !removed {
			s.logger.Warn("audio already missing", "id", id, "path", msg.Voice.FilePath)
		}
	}

	if _, err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	return nil
}
