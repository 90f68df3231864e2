package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alkime/rapidvoice/internal/audio"
	"github.com/alkime/rapidvoice/internal/chat"
	"github.com/alkime/rapidvoice/internal/config"
	"github.com/alkime/rapidvoice/internal/storage"
	"github.com/alkime/rapidvoice/internal/voice"
)

// app is the wired voice pipeline shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	files    *storage.Recordings
	recorder *audio.MicRecorder
	coord    *voice.Coordinator
	store    *chat.Store
	history  *chat.Service
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	files, err := storage.NewRecordings(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	rec, err := audio.NewMicRecorder(audio.EncoderConfig{SampleRate: cfg.SampleRate}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	coord, err := voice.New(voice.Config{
		Recorder:     rec,
		Player:       audio.NewSpeakerPlayer(logger),
		Files:        files,
		TickInterval: cfg.TickInterval,
		Logger:       logger,
		Callbacks: voice.Callbacks{
			OnError: func(err error) { logger.Error("voice operation failed", "error", err) },
		},
	})
	if err != nil {
		return nil, err
	}

	store, err := chat.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, errors.Join(err, coord.Release())
	}

	logger.Debug("voice pipeline ready",
		"recordings", files.Dir(),
		"db", cfg.DBPath,
		"sampleRate", cfg.SampleRate,
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		files:    files,
		recorder: rec,
		coord:    coord,
		store:    store,
		history:  chat.NewService(coord, store, logger),
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.coord.Release(), a.store.Close())
}
