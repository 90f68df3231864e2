package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/alkime/rapidvoice/internal/audio"
	"github.com/alkime/rapidvoice/internal/chat"
	"github.com/alkime/rapidvoice/internal/config"
	"github.com/alkime/rapidvoice/internal/logger"
	"github.com/alkime/rapidvoice/internal/server"
	"github.com/alkime/rapidvoice/internal/storage"
	"github.com/alkime/rapidvoice/internal/tui"
	"github.com/alkime/rapidvoice/pkg/uictl"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

const logFileName = "voicemsg.log"

// CLI defines the voicemsg command structure.
type CLI struct {
	Globals

	Record  RecordCmd  `cmd:"" default:"withargs" help:"Record, preview and send voice messages in the terminal"`
	Serve   ServeCmd   `cmd:"" help:"Run the HTTP control surface"`
	Devices DevicesCmd `cmd:"" help:"List available audio devices"`
	Cache   CacheCmd   `cmd:"" help:"Inspect or clear the recordings cache"`
	History HistoryCmd `cmd:"" help:"Inspect sent messages"`
}

// Globals are flags shared by every command. Set flags win over the
// environment.
type Globals struct {
	CacheDir   string `flag:"" optional:"" help:"Recordings cache root (VOICE_CACHE_DIR)"`
	DB         string `flag:"" optional:"" help:"Message database path (VOICE_DB_PATH)"`
	SampleRate int    `flag:"" optional:"" help:"Capture sample rate in Hz (VOICE_SAMPLE_RATE)"`
	LogLevel   string `flag:"" optional:"" help:"Log level: debug, info, warn or error (LOG_LEVEL)"`
}

func (g *Globals) config() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if g.CacheDir != "" {
		cfg.CacheDir = g.CacheDir
		// the default database follows the cache root
		if os.Getenv("VOICE_DB_PATH") == "" {
			cfg.DBPath = ""
		}
	}
	if g.DB != "" {
		cfg.DBPath = g.DB
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.CacheDir, "messages.sqlite")
	}
	if g.SampleRate > 0 {
		cfg.SampleRate = g.SampleRate
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}

	return cfg, cfg.Validate()
}

// RecordCmd is the default command that runs the TUI.
type RecordCmd struct {
	KeepUnsent bool `flag:"" help:"Keep an unsent recording on disk when quitting"`
}

// Run executes the TUI command.
func (c *RecordCmd) Run(g *Globals) error {
	cfg, err := g.config()
	if err != nil {
		return err
	}

	// the TUI owns stdout, so logs go to a file in the cache
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	logPath := filepath.Join(cfg.CacheDir, logFileName)
	//nolint:gosec // path is built from the configured cache dir
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	log := logger.SetupText(cfg, logFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to release voice pipeline", "error", err)
		}
	}()

	m, err := tui.New(ctx, a.coord, tui.Options{
		Level:  uictl.DialFunc[float64](a.recorder.Level),
		Sender: a.history,
	})
	if err != nil {
		return err
	}

	if _, err := tea.NewProgram(m, tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	if !c.KeepUnsent {
		a.coord.Reset(context.WithoutCancel(ctx))
	}

	fmt.Println("bye!")

	return nil
}

// ServeCmd runs the HTTP control surface.
type ServeCmd struct {
	Port string `flag:"" optional:"" help:"Listen port (PORT)"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := g.config()
	if err != nil {
		return err
	}
	if c.Port != "" {
		cfg.Port = c.Port
	}

	log := logger.Setup(cfg, os.Stdout)
	log.Info("Starting voicemsg server", "env", cfg.Env, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to release voice pipeline", "error", err)
		}
	}()

	return server.New(cfg, a.coord, a.history, log).Run(ctx)
}

// DevicesCmd lists available audio devices.
type DevicesCmd struct{}

// Run executes the devices command.
func (d *DevicesCmd) Run() error {
	for _, kind := range []audio.Kind{audio.KindCapture, audio.KindPlayback} {
		devices, err := audio.EnumerateDevices(kind)
		if err != nil {
			return fmt.Errorf("failed to enumerate %s devices: %w", kind, err)
		}

		for _, dev := range devices {
			slog.Info("Audio Device",
				"kind", kind,
				"name", dev.Name,
				"isDefault", dev.IsDefault,
				"formatCount", dev.FormatCount,
				"formats", dev.Formats,
			)
		}
	}

	return nil
}

// CacheCmd groups recordings cache subcommands.
type CacheCmd struct {
	Path  CachePathCmd  `cmd:"" help:"Print the recordings directory"`
	Size  CacheSizeCmd  `cmd:"" help:"Print the size of the recordings cache"`
	Clear CacheClearCmd `cmd:"" help:"Delete cached recordings the history no longer uses"`
}

func recordings(g *Globals) (*storage.Recordings, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}

	return storage.NewRecordings(cfg.CacheDir)
}

type CachePathCmd struct{}

func (c *CachePathCmd) Run(g *Globals) error {
	files, err := recordings(g)
	if err != nil {
		return err
	}

	fmt.Println(files.Dir())

	return nil
}

type CacheSizeCmd struct{}

func (c *CacheSizeCmd) Run(g *Globals) error {
	files, err := recordings(g)
	if err != nil {
		return err
	}

	list, err := files.Files()
	if err != nil {
		return err
	}
	size, err := files.Size()
	if err != nil {
		return err
	}

	fmt.Printf("%d recordings, %s\n", len(list), humanize.Bytes(uint64(max(size, 0))))

	return nil
}

type CacheClearCmd struct {
	Yes bool `flag:"" short:"y" help:"Do not ask for confirmation"`
	All bool `flag:"" help:"Also delete audio of sent messages, leaving their history entries unplayable"`
}

func (c *CacheClearCmd) Run(g *Globals) error {
	cfg, err := g.config()
	if err != nil {
		return err
	}

	prompt := "Delete unsent recordings in " + filepath.Join(cfg.CacheDir, storage.DirName) + "?"
	if c.All {
		prompt = "Delete every recording, including sent messages, in " + filepath.Join(cfg.CacheDir, storage.DirName) + "?"
	}
	if !c.Yes && !confirm(os.Stdin, prompt) {
		fmt.Println("aborted")
		return nil
	}

	n, err := clearCache(context.Background(), cfg, c.All)
	fmt.Printf("deleted %d recordings\n", n)

	return err
}

// clearCache removes cached recordings. Unless all is set, audio referenced
// by the message history is kept.
func clearCache(ctx context.Context, cfg *config.Config, all bool) (int, error) {
	files, err := storage.NewRecordings(cfg.CacheDir)
	if err != nil {
		return 0, err
	}
	if all {
		return files.ClearCache()
	}

	store, err := chat.Open(ctx, cfg.DBPath)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	keep, err := store.AudioPaths(ctx)
	if err != nil {
		return 0, err
	}

	return files.ClearCache(keep...)
}

// HistoryCmd groups chat history subcommands.
type HistoryCmd struct {
	List   HistoryListCmd   `cmd:"" default:"1" help:"List sent messages"`
	Delete HistoryDeleteCmd `cmd:"" help:"Delete a sent message and its audio"`
}

type HistoryListCmd struct{}

func (c *HistoryListCmd) Run(g *Globals) error {
	return withApp(g, func(ctx context.Context, a *app) error {
		list, err := a.history.List(ctx)
		if err != nil {
			return err
		}

		t := table.New().Headers("ID", "KIND", "SENT", "DURATION", "SIZE / TEXT")
		for _, m := range list {
			detail, duration := m.Content, ""
			if m.Voice != nil {
				detail = humanize.Bytes(uint64(max(m.Voice.SizeBytes, 0)))
				duration = m.Voice.Duration.Round(100 * time.Millisecond).String()
			}
			t.Row(m.ID, string(m.Kind), humanize.Time(m.SentAt), duration, detail)
		}

		fmt.Println(t.Render())

		return nil
	})
}

type HistoryDeleteCmd struct {
	ID string `arg:"" help:"Message ID"`
}

func (c *HistoryDeleteCmd) Run(g *Globals) error {
	return withApp(g, func(ctx context.Context, a *app) error {
		if err := a.history.Delete(ctx, c.ID); err != nil {
			return err
		}

		fmt.Printf("deleted %s\n", c.ID)

		return nil
	})
}

// withApp runs fn against a pipeline that is released afterwards.
func withApp(g *Globals, fn func(ctx context.Context, a *app) error) error {
	cfg, err := g.config()
	if err != nil {
		return err
	}

	log := logger.SetupText(cfg, os.Stderr)
	ctx := context.Background()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	runErr := fn(ctx, a)
	if err := a.Close(); err != nil {
		log.Warn("failed to release voice pipeline", "error", err)
	}

	return runErr
}

func confirm(r io.Reader, prompt string) bool {
	fmt.Print(prompt + " [y/N] ")

	var answer string
	if _, err := fmt.Fscanln(r, &answer); err != nil {
		return false
	}

	return answer == "y" || answer == "Y" || answer == "yes"
}

func main() {
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))

	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("voicemsg"),
		kong.Description("Record, preview and send voice messages."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
