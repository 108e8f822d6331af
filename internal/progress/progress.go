// Package progress renders download events as plain terminal lines for the
// headless get command.
package progress

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"

	"github.com/trackload/trackload/internal/engine/events"
	"github.com/trackload/trackload/internal/engine/types"
	"github.com/trackload/trackload/internal/utils"
)

// FormatLine renders the progress text for transferred bytes. total is
// types.UnknownSize (or any negative value) when the server sent no length.
func FormatLine(transferred, total int64) string {
	pct, ok := types.Percent(transferred, total)
	if !ok {
		return "Downloaded: " + utils.FormatSize(transferred)
	}
	return fmt.Sprintf("Downloaded: %s of %s (%.2f%%)",
		utils.FormatSize(transferred), utils.FormatSize(total), pct)
}

// TotalLine announces the size once headers are in.
func TotalLine(total int64) string {
	if total < 0 {
		return "Total file size: unknown"
	}
	return "Total file size: " + utils.FormatSize(total)
}

// Printer writes events to a terminal, refreshing the progress line in place.
type Printer struct {
	out     *termenv.Output
	inLine  bool // a \r progress line is open
	lastLen int
}

// NewPrinter writes to w. Colour support is detected from w unless an
// option overrides it.
func NewPrinter(w io.Writer, opts ...termenv.OutputOption) *Printer {
	return &Printer{out: termenv.NewOutput(w, opts...)}
}

// Consume handles every event until ch is closed.
func (p *Printer) Consume(ch <-chan any) {
	for msg := range ch {
		p.Handle(msg)
	}
}

// Handle renders one event.
func (p *Printer) Handle(msg any) {
	switch m := msg.(type) {
	case events.DownloadStartedMsg:
		p.println(TotalLine(m.Total))

	case events.ProgressMsg:
		line := FormatLine(m.Downloaded, m.Total)
		pad := ""
		if n := p.lastLen - len(line); n > 0 {
			pad = strings.Repeat(" ", n)
		}
		_, _ = fmt.Fprint(p.out, "\r"+line+pad)
		p.inLine = true
		p.lastLen = len(line)

	case events.CancelRequestedMsg:
		p.println("Download cancellation requested...")

	case events.ContentDetectedMsg:
		utils.Debug("Content type %s", m.MIME)

	case events.DownloadCompleteMsg, events.DownloadCancelledMsg, events.DownloadErrorMsg:
		p.endLine()
	}
}

// Finish prints the single terminal message for outcome.
func (p *Printer) Finish(outcome types.Outcome) {
	p.endLine()

	style := p.out.String(outcome.Message())
	switch outcome.Kind {
	case types.Succeeded:
		style = style.Foreground(p.out.Color("2"))
	case types.Cancelled:
		style = style.Foreground(p.out.Color("3"))
	default:
		style = style.Foreground(p.out.Color("1")).Bold()
	}
	_, _ = fmt.Fprintln(p.out, style.String())
}

func (p *Printer) println(line string) {
	p.endLine()
	_, _ = fmt.Fprintln(p.out, line)
}

func (p *Printer) endLine() {
	if p.inLine {
		_, _ = fmt.Fprintln(p.out)
		p.inLine = false
		p.lastLen = 0
	}
}
