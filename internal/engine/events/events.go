package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/trackload/trackload/internal/engine/types"
)

// DownloadStartedMsg is sent once response headers are in and the
// destination file is open.
type DownloadStartedMsg struct {
	DownloadID string
	URL        string
	DestPath   string               // Resolved destination file
	Total      int64                // types.UnknownSize when the server sent no length
	State      *types.TransferState `json:"-"`
}

// ContentDetectedMsg reports the file type sniffed from the first chunk.
type ContentDetectedMsg struct {
	DownloadID string
	MIME       string
	Extension  string
}

// ProgressMsg is sent after every chunk has been written to disk.
type ProgressMsg struct {
	DownloadID string
	Downloaded int64
	Total      int64
	Elapsed    time.Duration
	Speed      float64 // bytes per second
}

// CancelRequestedMsg is sent when the cancel key has been seen. The
// download stops at its next chunk boundary.
type CancelRequestedMsg struct {
	DownloadID string
}

// DownloadCompleteMsg signals that the download finished successfully
type DownloadCompleteMsg struct {
	DownloadID string
	DestPath   string
	Elapsed    time.Duration
	Total      int64
}

// DownloadCancelledMsg signals that the user stopped the download. The
// partial file is left on disk.
type DownloadCancelledMsg struct {
	DownloadID string
	DestPath   string
	Downloaded int64
}

// DownloadErrorMsg signals that an error occurred
type DownloadErrorMsg struct {
	DownloadID string
	DestPath   string
	Err        error
}

func (m DownloadErrorMsg) MarshalJSON() ([]byte, error) {
	type encoded struct {
		DownloadID string `json:"DownloadID"`
		DestPath   string `json:"DestPath,omitempty"`
		Err        string `json:"Err,omitempty"`
	}

	out := encoded{
		DownloadID: m.DownloadID,
		DestPath:   m.DestPath,
	}
	if m.Err != nil {
		out.Err = m.Err.Error()
	}

	return json.Marshal(out)
}

func (m *DownloadErrorMsg) UnmarshalJSON(data []byte) error {
	var aux struct {
		DownloadID string          `json:"DownloadID"`
		DestPath   string          `json:"DestPath"`
		Err        json.RawMessage `json:"Err"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.DownloadID = aux.DownloadID
	m.DestPath = aux.DestPath
	m.Err = nil

	if len(aux.Err) == 0 {
		return nil
	}

	var errStr string
	if err := json.Unmarshal(aux.Err, &errStr); err == nil {
		if errStr != "" {
			m.Err = errors.New(errStr)
		}
		return nil
	}

	// Accept non-string payloads (e.g. {}).
	raw := string(aux.Err)
	if raw != "" && raw != "null" {
		m.Err = errors.New(raw)
	}
	return nil
}

// Emit sends msg on ch. A nil channel drops the message.
func Emit(ch chan<- any, msg any) {
	if ch != nil {
		ch <- msg
	}
}
