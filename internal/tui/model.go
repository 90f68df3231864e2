// Package tui is the interactive terminal recorder.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alkime/rapidvoice/internal/chat"
	"github.com/alkime/rapidvoice/internal/tui/components/waveform"
	"github.com/alkime/rapidvoice/internal/tui/style"
	"github.com/alkime/rapidvoice/internal/voice"
	"github.com/alkime/rapidvoice/pkg/uictl"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Controller is the coordinator surface the TUI drives.
type Controller interface {
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
}

// Sender takes the current message off the coordinator.
type Sender interface {
	SendCurrent(ctx context.Context) (chat.Message, error)
}

// Options are the optional collaborators of the TUI.
type Options struct {
	// Level feeds the input meter while recording.
	Level uictl.Dial[float64]
	// Sender handles enter. Without one, enter only marks the message
	// ready to send.
	Sender Sender
}

type (
	stateMsg       struct{ state voice.State }
	watchClosedMsg struct{}
	opErrMsg       struct{ err error }
	sentMsg        struct{ msg chat.Message }
)

// Model renders the coordinator state and maps keys to operations.
type Model struct {
	ctx    context.Context
	voice  Controller
	sender Sender
	states <-chan voice.State

	state     voice.State
	recording bool
	err       error
	notice    string
	quitting  bool

	keys     KeyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model
	meter    waveform.Model
}

// New subscribes to vc's state. The subscription ends with ctx.
func New(ctx context.Context, vc Controller, opts Options) (Model, error) {
	states, err := vc.Watch(ctx)
	if err != nil {
		return Model{}, err
	}

	s := spinner.New()
	s.Spinner = spinner.Points

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return Model{
		ctx:      ctx,
		voice:    vc,
		sender:   opts.Sender,
		states:   states,
		state:    vc.State(),
		keys:     DefaultKeyMap(),
		help:     help.New(),
		spinner:  s,
		progress: p,
		meter:    waveform.New(opts.Level, 40, 2),
	}, nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.states),
		m.spinner.Tick,
		m.meter.Init(),
	)
}

func waitForState(states <-chan voice.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-states
		if !ok {
			return watchClosedMsg{}
		}
		return stateMsg{state: st}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.progress.Width = max(10, min(msg.Width-8, 60))
		return m, nil

	case stateMsg:
		m.state = msg.state
		if rec := voice.IsRecording(msg.state); rec != m.recording {
			m.recording = rec
			m.meter = m.meter.SetActive(rec)
		}
		return m, waitForState(m.states)

	case watchClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case opErrMsg:
		m.err = msg.err
		return m, nil

	case sentMsg:
		m.notice = "Sent voice message"
		if msg.msg.Voice != nil {
			m.notice += " (" + formatDuration(msg.msg.Voice.Duration) + ")"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case waveform.TickMsg:
		var cmd tea.Cmd
		m.meter, cmd = m.meter.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Record):
		if voice.IsRecording(m.state) {
			return m.do(func(ctx context.Context) error {
				vm, err := m.voice.StopRecording(ctx)
				if err != nil {
					return err
				}
				return m.voice.EnterPreviewMode(vm)
			})
		}
		return m.do(m.voice.StartRecording)

	case key.Matches(msg, m.keys.Play):
		if op := m.playbackToggle(); op != nil {
			return m.do(op)
		}

	case key.Matches(msg, m.keys.Stop):
		return m.do(m.voice.StopPlayback)

	case key.Matches(msg, m.keys.Send):
		return m.send()

	case key.Matches(msg, m.keys.Delete):
		return m.do(m.voice.DeleteRecording)
	}

	return m, nil
}

// do runs op off the update loop and reports its error, if any.
func (m Model) do(op func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	m.err = nil
	m.notice = ""

	ctx := m.ctx
	return m, func() tea.Msg {
		if err := op(ctx); err != nil {
			return opErrMsg{err: err}
		}
		return nil
	}
}

// playbackToggle picks play, pause or resume for the current state.
func (m Model) playbackToggle() func(ctx context.Context) error {
	switch st := m.state.(type) {
	case voice.Preview:
		switch {
		case st.Playing:
			return m.voice.PausePlayback
		case st.Position > 0:
			return m.voice.ResumePlayback
		default:
			return func(ctx context.Context) error { return m.voice.PlayRecording(ctx, st.Message) }
		}
	case voice.ReadyToSend:
		return func(ctx context.Context) error { return m.voice.PlayRecording(ctx, st.Message) }
	case voice.RecordingCompleted:
		return func(ctx context.Context) error { return m.voice.PlayRecording(ctx, st.Message) }
	}

	return nil
}

func (m Model) send() (tea.Model, tea.Cmd) {
	if m.sender == nil {
		vm, ok := voice.CurrentMessage(m.state)
		if !ok {
			return m, nil
		}
		return m.do(func(ctx context.Context) error { return m.voice.MarkReadyToSend(ctx, vm) })
	}

	m.err = nil
	m.notice = ""

	ctx, sender := m.ctx, m.sender
	return m, func() tea.Msg {
		sent, err := sender.SendCurrent(ctx)
		if err != nil {
			return opErrMsg{err: err}
		}
		return sentMsg{msg: sent}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(style.Title.Render("Voice message"))
	sb.WriteString("\n\n")
	sb.WriteString(m.viewState())
	sb.WriteString("\n\n")

	switch {
	case m.err != nil:
		sb.WriteString(style.Error.Render(m.err.Error()))
		sb.WriteString("\n\n")
	case m.notice != "":
		sb.WriteString(style.Success.Render(m.notice))
		sb.WriteString("\n\n")
	}

	sb.WriteString(m.help.View(m.keys))

	return style.Frame.Render(sb.String())
}

func (m Model) viewState() string {
	switch st := m.state.(type) {
	case voice.Idle:
		return style.Subtitle.Render("Press space to start recording")

	case voice.Recording:
		return m.spinner.View() + " " +
			style.Recording.Render("Recording") + " " +
			style.Subtitle.Render(formatDuration(st.Elapsed)) + "\n\n" +
			m.meter.View()

	case voice.RecordingCompleted:
		return style.Subtitle.Render("Recording finished " + formatDuration(st.Message.Duration))

	case voice.Preview:
		status := style.Warning.Render("paused")
		if st.Playing {
			status = style.Success.Render("playing")
		}

		frac := 0.0
		if st.Message.Duration > 0 {
			frac = float64(st.Position) / float64(st.Message.Duration)
		}

		return style.Title.Render("Preview") + " " + status + "\n\n" +
			m.progress.ViewAs(frac) + "\n" +
			style.Subtitle.Render(formatDuration(st.Position)+" / "+formatDuration(st.Message.Duration))

	case voice.ReadyToSend:
		return style.Success.Render("Ready to send") + " " +
			style.Subtitle.Render(formatDuration(st.Message.Duration))

	case voice.Sending:
		return style.Subtitle.Render("Sending") + "\n\n" + m.progress.ViewAs(st.Progress)

	case voice.Sent:
		return style.Success.Render("Sent")

	case voice.SendFailed:
		return style.Error.Render(fmt.Sprintf("Send failed: %v", st.Err))

	case voice.Error:
		return style.Error.Render(fmt.Sprintf("Error (%s): %v", st.Source, st.Err))
	}

	return ""
}

func formatDuration(d time.Duration) string {
	d = max(d, 0).Truncate(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
