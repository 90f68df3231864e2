package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/alkime/rapidvoice/internal/chat"
	"github.com/alkime/rapidvoice/internal/voice"
	"github.com/gin-gonic/gin"
)

var errNoMessage = errors.New("no current voice message")

type textRequest struct {
	Content string `json:"content" binding:"required"`
}

// respondError maps err to a status code and writes it as JSON.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, voice.ErrReleased):
		return http.StatusGone
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, voice.ErrInvalidState),
		errors.Is(err, voice.ErrAlreadyRecording),
		errors.Is(err, chat.ErrNothingToSend),
		errors.Is(err, chat.ErrNotVoice),
		errors.Is(err, errNoMessage):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondState writes the coordinator state after an operation.
func (s *Server) respondState(c *gin.Context) {
	c.JSON(http.StatusOK, voice.SnapshotOf(s.voice.State()))
}

func (s *Server) current() (voice.VoiceMessage, error) {
	msg, ok := voice.CurrentMessage(s.voice.State())
	if !ok {
		return voice.VoiceMessage{}, errNoMessage
	}

	return msg, nil
}

func (s *Server) handleState(c *gin.Context) {
	s.respondState(c)
}

// handleEvents streams every state change as a server-sent event until
// the client goes away.
func (s *Server) handleEvents(c *gin.Context) {
	states, err := s.voice.Watch(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.Stream(func(w io.Writer) bool {
		st, ok := <-states
		if !ok {
			return false
		}
		c.SSEvent("state", voice.SnapshotOf(st))
		return true
	})
}

func (s *Server) handleStart(c *gin.Context) {
	if err := s.voice.StartRecording(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) handleStop(c *gin.Context) {
	msg, err := s.voice.StopRecording(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	// a stopped recording goes straight to preview
	if err := s.voice.EnterPreviewMode(msg); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) handleDelete(c *gin.Context) {
	if err := s.voice.DeleteRecording(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) handlePreview(c *gin.Context) {
	msg, err := s.current()
	if err == nil {
		err = s.voice.EnterPreviewMode(msg)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) handlePlay(c *gin.Context) {
	msg, err := s.current()
	if err == nil {
		err = s.voice.PlayRecording(c.Request.Context(), msg)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) handlePause(c *gin.Context) {
	if err := s.voice.PausePlayback(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) handleResume(c *gin.Context) {
	if err := s.voice.ResumePlayback(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) handleStopPlayback(c *gin.Context) {
	if err := s.voice.StopPlayback(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) handleReady(c *gin.Context) {
	msg, err := s.current()
	if err == nil {
		err = s.voice.MarkReadyToSend(c.Request.Context(), msg)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) handleSend(c *gin.Context) {
	msg, err := s.history.SendCurrent(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) handleIdle(c *gin.Context) {
	s.voice.TransitionToIdle(c.Request.Context())
	s.respondState(c)
}

func (s *Server) handleReset(c *gin.Context) {
	s.voice.Reset(c.Request.Context())
	s.respondState(c)
}

func (s *Server) handleListMessages(c *gin.Context) {
	list, err := s.history.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if list == nil {
		list = []chat.Message{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleSendText(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := s.history.SendText(c.Request.Context(), req.Content)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) handleGetMessage(c *gin.Context) {
	msg, err := s.history.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (s *Server) handlePlayMessage(c *gin.Context) {
	if err := s.history.Play(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) handleDeleteMessage(c *gin.Context) {
	if err := s.history.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
