package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alkime/rapidvoice/internal/chat"
	"github.com/alkime/rapidvoice/internal/config"
	"github.com/alkime/rapidvoice/internal/voice"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// VoiceController is the coordinator surface exposed over HTTP.
type VoiceController interface {
	State() voice.State
	Watch(ctx context.Context) (<-chan voice.State, error)
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (voice.VoiceMessage, error)
	DeleteRecording(ctx context.Context) error
	EnterPreviewMode(msg voice.VoiceMessage) error
	PlayRecording(ctx context.Context, msg voice.VoiceMessage) error
	PausePlayback(ctx context.Context) error
	ResumePlayback(ctx context.Context) error
	StopPlayback(ctx context.Context) error
	MarkReadyToSend(ctx context.Context, msg voice.VoiceMessage) error
	TransitionToIdle(ctx context.Context)
	Reset(ctx context.Context)
}

// History is the chat history exposed over HTTP.
type History interface {
	SendCurrent(ctx context.Context) (chat.Message, error)
	SendText(ctx context.Context, content string) (chat.Message, error)
	List(ctx context.Context) ([]chat.Message, error)
	Get(ctx context.Context, id string) (chat.Message, error)
	Play(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// Server represents the HTTP server
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	router  *gin.Engine
	voice   VoiceController
	history History
}

// New creates a new Server instance
func New(cfg *config.Config, vc VoiceController, history History, logger *slog.Logger) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())

	server := &Server{
		config:  cfg,
		logger:  logger,
		router:  router,
		voice:   vc,
		history: history,
	}

	setupSecurityMiddleware(router, cfg, logger)
	server.setupRoutes()

	return server
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "port", s.config.Port)
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errC; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api/v1")

	v := api.Group("/voice")
	{
		v.GET("/state", s.handleState)
		v.GET("/events", s.handleEvents)
		v.POST("/start", s.handleStart)
		v.POST("/stop", s.handleStop)
		v.POST("/delete", s.handleDelete)
		v.POST("/preview", s.handlePreview)
		v.POST("/play", s.handlePlay)
		v.POST("/pause", s.handlePause)
		v.POST("/resume", s.handleResume)
		v.POST("/stop-playback", s.handleStopPlayback)
		v.POST("/ready", s.handleReady)
		v.POST("/send", s.handleSend)
		v.POST("/idle", s.handleIdle)
		v.POST("/reset", s.handleReset)
	}

	m := api.Group("/messages")
	{
		m.GET("", s.handleListMessages)
		m.POST("", s.handleSendText)
		m.GET("/:id", s.handleGetMessage)
		m.POST("/:id/play", s.handlePlayMessage)
		m.DELETE("/:id", s.handleDeleteMessage)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "rapidvoice",
	})
}
