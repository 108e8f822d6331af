package types

import (
	"errors"
	"sync/atomic"
	"time"
)

// DownloadRequest names what to fetch and where to put it.
type DownloadRequest struct {
	URL      string
	DestPath string
}

// CancelSignal is the read side of the shared cancellation flag.
type CancelSignal interface {
	Cancelled() bool
}

// TransferState is owned by the downloader for the duration of a transfer.
// Fields are atomic so the TUI can poll them while the transfer runs.
type TransferState struct {
	ID          string
	Total       atomic.Int64 // UnknownSize until headers are read
	Transferred atomic.Int64
	Cancelled   atomic.Bool
	StartTime   time.Time

	contentType atomic.Pointer[string]
}

// NewTransferState creates a state with an unknown total.
func NewTransferState(id string) *TransferState {
	s := &TransferState{ID: id, StartTime: time.Now()}
	s.Total.Store(UnknownSize)
	return s
}

// Percent returns transferred/total*100, or false when the total is unknown.
// An empty body counts as complete.
func Percent(transferred, total int64) (float64, bool) {
	if total < 0 {
		return 0, false
	}
	if total == 0 {
		return 100, true
	}
	return float64(transferred) / float64(total) * 100, true
}

// Add records n freshly written bytes and returns the new running total.
func (s *TransferState) Add(n int64) int64 {
	if n <= 0 {
		return s.Transferred.Load()
	}
	return s.Transferred.Add(n)
}

// SetContentType records the sniffed MIME type.
func (s *TransferState) SetContentType(mime string) {
	s.contentType.Store(&mime)
}

// ContentType returns the sniffed MIME type, or "" if none was detected.
func (s *TransferState) ContentType() string {
	if p := s.contentType.Load(); p != nil {
		return *p
	}
	return ""
}

// OutcomeKind tags how a run ended.
type OutcomeKind int

const (
	Succeeded OutcomeKind = iota
	Cancelled
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Succeeded:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a run.
type Outcome struct {
	Kind        OutcomeKind
	Err         error
	DestPath    string
	Transferred int64
	Total       int64
	Elapsed     time.Duration
}

// OutcomeFromError classifies err into an Outcome. A nil error is success.
func OutcomeFromError(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Kind: Succeeded, Total: UnknownSize}
	case errors.Is(err, ErrCancelled):
		return Outcome{Kind: Cancelled, Err: err, Total: UnknownSize}
	default:
		return Outcome{Kind: Failed, Err: err, Total: UnknownSize}
	}
}

// Message is the single line printed when the run ends.
func (o Outcome) Message() string {
	switch o.Kind {
	case Succeeded:
		return "Download completed successfully!"
	case Cancelled:
		return "Download was cancelled."
	default:
		if o.Err == nil {
			return "Error: unknown failure"
		}
		return "Error: " + o.Err.Error()
	}
}
