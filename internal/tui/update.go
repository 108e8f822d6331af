package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/trackload/trackload/internal/engine"
	"github.com/trackload/trackload/internal/engine/events"
	"github.com/trackload/trackload/internal/engine/types"
	"github.com/trackload/trackload/internal/utils"
)

// Update handles messages and updates the model
func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The final outcome is authoritative; buffered events still drain.
	if m.state == DoneState && isEngineEvent(msg) {
		return m, listenForActivity(m.progressChan)
	}

	switch msg := msg.(type) {
	case events.DownloadStartedMsg:
		m.total = msg.Total
		return m, listenForActivity(m.progressChan)

	case events.ContentDetectedMsg:
		m.contentType = msg.MIME
		return m, listenForActivity(m.progressChan)

	case events.ProgressMsg:
		m.downloaded = msg.Downloaded
		m.total = msg.Total
		m.speed = msg.Speed
		return m, listenForActivity(m.progressChan)

	case events.CancelRequestedMsg:
		m.cancelRequested = true
		return m, listenForActivity(m.progressChan)

	case events.DownloadCompleteMsg, events.DownloadCancelledMsg, events.DownloadErrorMsg:
		return m, listenForActivity(m.progressChan)

	case runFinishedMsg:
		outcome := msg.Outcome
		m.outcome = &outcome
		m.downloaded = outcome.Transferred
		m.total = outcome.Total
		m.state = DoneState
		utils.Debug("Run %s finished: %s", m.id, outcome.Kind)
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = ProgressBarWidth
		if w := msg.Width - ProgressMargin*2; w > 0 && w < ProgressBarWidth {
			m.progress.Width = w
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func isEngineEvent(msg tea.Msg) bool {
	switch msg.(type) {
	case events.DownloadStartedMsg, events.ContentDetectedMsg, events.ProgressMsg,
		events.CancelRequestedMsg, events.DownloadCompleteMsg,
		events.DownloadCancelledMsg, events.DownloadErrorMsg:
		return true
	}
	return false
}

func (m RootModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch m.state {
	case URLState, PathState:
		if key == "ctrl+c" || key == "esc" {
			return m.quit()
		}
		if key == "enter" {
			return m.submitInput()
		}
		var cmd tea.Cmd
		m.inputs[m.focusedInput], cmd = m.inputs[m.focusedInput].Update(msg)
		return m, cmd

	case ReadyState:
		if key == "ctrl+c" {
			return m.quit()
		}
		// Any other key starts the transfer.
		close(m.start)
		m.state = DownloadingState
		return m, nil

	case DownloadingState:
		// Ctrl+C is treated as the cancel key so the partial file is closed cleanly.
		if key == "ctrl+c" {
			key = m.settings.General.CancelKey
		}
		select {
		case m.keys <- key:
		default:
			utils.Debug("Key buffer full, dropped %q", key)
		}
		return m, nil

	case DoneState:
		return m.quit()
	}

	return m, nil
}

func (m RootModel) submitInput() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.inputs[m.focusedInput].Value())

	switch m.state {
	case URLState:
		if value == "" {
			m.inputErr = "A URL is required."
			return m, nil
		}
		m.inputErr = ""
		m.inputs[0].SetValue(value)
		m.inputs[0].Blur()

		m.focusedInput = 1
		m.inputs[1].SetValue(suggestedPath(value))
		m.inputs[1].CursorEnd()
		m.inputs[1].Focus()
		m.state = PathState
		return m, nil

	case PathState:
		if value == "" {
			value = suggestedPath(m.inputs[0].Value())
		}
		m.inputs[1].SetValue(value)
		m.inputs[1].Blur()
		m.state = ReadyState

		req := types.DownloadRequest{URL: m.inputs[0].Value(), DestPath: value}
		runtime := types.ConvertRuntimeConfig(m.settings.ToRuntimeConfig())
		m.runner = engine.NewRunner(m.id, m.progressChan, nil, runtime)
		utils.Debug("Prepared run %s: %s -> %s", m.id, req.URL, req.DestPath)

		return m, runDownload(m.ctx, m.runner, req, m.start, m.keys, m.recorder)
	}

	return m, nil
}

func (m RootModel) quit() (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
	}
	return m, tea.Quit
}
