package tui

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/trackload/trackload/internal/config"
	"github.com/trackload/trackload/internal/engine"
	"github.com/trackload/trackload/internal/engine/types"
	"github.com/trackload/trackload/internal/history"
	"github.com/trackload/trackload/internal/utils"
)

type UIState int

const (
	URLState         UIState = iota // asking for the URL
	PathState                       // asking for the destination
	ReadyState                      // waiting for the start key
	DownloadingState                // transfer running, keys go to the watcher
	DoneState                       // terminal message shown
)

// Recorder stores finished runs. *history.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Options configures the interactive session.
type Options struct {
	Settings *config.Settings
	Recorder Recorder // nil disables history
}

// runFinishedMsg carries the Runner's outcome back into the model.
type runFinishedMsg struct {
	Outcome types.Outcome
}

// readClipboard is swapped in tests.
var readClipboard = clipboard.ReadAll

type RootModel struct {
	width  int
	height int
	state  UIState

	inputs       []textinput.Model // URL, destination
	focusedInput int
	inputErr     string

	settings *config.Settings
	recorder Recorder

	// One run per session.
	id           string
	ctx          context.Context
	cancel       context.CancelFunc
	runner       *engine.Runner
	progressChan chan any
	keys         chan string
	start        chan struct{}

	total           int64
	downloaded      int64
	speed           float64
	contentType     string
	cancelRequested bool
	outcome         *types.Outcome

	progress progress.Model
}

// NewRootModel builds the first screen. The URL prompt is prefilled from the
// clipboard when it holds an http(s) URL and the setting allows it.
func NewRootModel(opts Options) RootModel {
	settings := opts.Settings
	if settings == nil {
		settings = config.DefaultSettings()
	}

	urlInput := textinput.New()
	urlInput.Placeholder = "https://example.com/file.zip"
	urlInput.Focus()
	urlInput.Width = InputWidth
	urlInput.Prompt = "> "

	pathInput := textinput.New()
	pathInput.Placeholder = types.DefaultFilename
	pathInput.Width = InputWidth
	pathInput.Prompt = "> "

	if settings.General.ClipboardPrefill {
		if u := clipboardURL(); u != "" {
			urlInput.SetValue(u)
			urlInput.CursorEnd()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return RootModel{
		state:        URLState,
		inputs:       []textinput.Model{urlInput, pathInput},
		settings:     settings,
		recorder:     opts.Recorder,
		id:           uuid.New().String(),
		ctx:          ctx,
		cancel:       cancel,
		progressChan: make(chan any, types.ProgressChannelBuffer),
		keys:         make(chan string, KeyChannelBuffer),
		start:        make(chan struct{}),
		total:        types.UnknownSize,
		progress:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(ProgressBarWidth)),
	}
}

func (m RootModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listenForActivity(m.progressChan))
}

func listenForActivity(sub chan any) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

// runDownload blocks in Runner.Run until the run is over. The runner waits
// on start itself, so it is launched as soon as the request is known.
func runDownload(ctx context.Context, runner *engine.Runner, req types.DownloadRequest, start <-chan struct{}, keys <-chan string, rec Recorder) tea.Cmd {
	return func() tea.Msg {
		outcome := runner.Run(ctx, req, start, keys)

		started := false
		select {
		case <-start:
			started = true
		default:
		}

		if rec != nil && started {
			entry := history.NewEntry(runner.ID, req, outcome, runner.State.ContentType(), time.Now().Add(-outcome.Elapsed))
			if err := rec.Record(context.Background(), entry); err != nil {
				utils.Debug("Failed to record history: %v", err)
			}
		}
		return runFinishedMsg{Outcome: outcome}
	}
}

// clipboardURL returns the clipboard text if it is an absolute http(s) URL.
func clipboardURL() string {
	text, err := readClipboard()
	if err != nil {
		utils.Debug("Clipboard unavailable: %v", err)
		return ""
	}
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, " \n\t") {
		return ""
	}
	parsed, err := url.Parse(text)
	if err != nil || parsed.Host == "" {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return text
}

// suggestedPath is the file name the URL points at.
func suggestedPath(rawURL string) string {
	if name, ok := utils.FilenameFromURL(rawURL); ok {
		return name
	}
	return types.DefaultFilename
}
