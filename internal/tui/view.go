package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/trackload/trackload/internal/engine/types"
	"github.com/trackload/trackload/internal/progress"
	"github.com/trackload/trackload/internal/utils"
)

func (m RootModel) View() string {
	sections := []string{TitleStyle.Render(Banner), ""}

	switch m.state {
	case URLState:
		sections = append(sections,
			LabelStyle.Render("Enter the URL of the file to download:"),
			m.inputs[0].View(),
		)
		if m.inputErr != "" {
			sections = append(sections, ErrorStyle.Render(m.inputErr))
		}
		sections = append(sections, "", HintStyle.Render("[Enter] Next  [Esc] Quit"))

	case PathState:
		sections = append(sections,
			StatsStyle.Render("URL: "+m.inputs[0].Value()),
			LabelStyle.Render("Enter the destination path:"),
			m.inputs[1].View(),
			"", HintStyle.Render("[Enter] Next  [Esc] Quit"),
		)

	case ReadyState:
		sections = append(sections,
			StatsStyle.Render("URL:  "+m.inputs[0].Value()),
			StatsStyle.Render("Path: "+m.inputs[1].Value()),
			"",
			"Press any key to start downloading...",
			"Press '"+strings.ToUpper(m.settings.General.CancelKey)+"' to cancel during download...",
		)

	case DownloadingState:
		sections = append(sections, m.transferView()...)
		if m.cancelRequested {
			sections = append(sections, WarningStyle.Render("Download cancellation requested..."))
		}

	case DoneState:
		sections = append(sections, m.transferView()...)
		sections = append(sections, "", m.outcomeView(), "", "Press any key to exit...")
	}

	return AppStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// transferView is the size announcement, bar and progress line.
func (m RootModel) transferView() []string {
	lines := []string{progress.TotalLine(m.total)}

	if pct, ok := types.Percent(m.downloaded, m.total); ok {
		lines = append(lines, m.progress.ViewAs(pct/100))
	}

	lines = append(lines, progress.FormatLine(m.downloaded, m.total))

	if m.state == DownloadingState && m.speed > 0 {
		lines = append(lines, StatsStyle.Render(utils.FormatSize(int64(m.speed))+"/s"))
	}
	if m.contentType != "" {
		lines = append(lines, StatsStyle.Render("Type: "+m.contentType))
	}
	return lines
}

func (m RootModel) outcomeView() string {
	if m.outcome == nil {
		return ""
	}
	switch m.outcome.Kind {
	case types.Succeeded:
		return SuccessStyle.Render(m.outcome.Message())
	case types.Cancelled:
		return WarningStyle.Render(m.outcome.Message())
	default:
		return ErrorStyle.Render(m.outcome.Message())
	}
}
