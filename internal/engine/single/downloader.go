package single

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/h2non/filetype"

	"github.com/trackload/trackload/internal/engine/events"
	"github.com/trackload/trackload/internal/engine/types"
	"github.com/trackload/trackload/internal/utils"
)

// sniffLen is how many leading bytes filetype needs to recognise a format.
const sniffLen = 262

// Downloader streams one HTTP response body to one file.
// NOTE: there is no resume and no retry. A cancelled or failed transfer
// leaves whatever was written on disk.
type Downloader struct {
	Client       *http.Client
	ProgressChan chan<- any           // Channel for events (start/progress/complete/error)
	ID           string               // Download ID
	State        *types.TransferState // Shared state for TUI polling
	Runtime      *types.RuntimeConfig
}

// NewDownloader creates a downloader with all required parameters
func NewDownloader(id string, progressCh chan<- any, state *types.TransferState, runtime *types.RuntimeConfig) *Downloader {
	if state == nil {
		state = types.NewTransferState(id)
	}

	// Default transport and redirect policy: no proxy, auth or custom headers.
	client := &http.Client{
		Timeout: 0,
	}

	return &Downloader{
		Client:       client,
		ProgressChan: progressCh,
		ID:           id,
		State:        state,
		Runtime:      runtime,
	}
}

// Download fetches req.URL into req.DestPath, checking signal before every
// chunk read. The returned Outcome is terminal.
func (d *Downloader) Download(ctx context.Context, req types.DownloadRequest, signal types.CancelSignal) types.Outcome {
	start := time.Now()

	destPath, err := d.transfer(ctx, req, signal, start)

	outcome := types.OutcomeFromError(err)
	outcome.DestPath = destPath
	outcome.Transferred = d.State.Transferred.Load()
	outcome.Total = d.State.Total.Load()
	outcome.Elapsed = time.Since(start)

	switch outcome.Kind {
	case types.Succeeded:
		utils.Debug("Downloaded %s in %s (%s/s)",
			destPath,
			outcome.Elapsed.Round(time.Millisecond),
			utils.FormatSize(int64(speed(outcome.Transferred, outcome.Elapsed))),
		)
		events.Emit(d.ProgressChan, events.DownloadCompleteMsg{
			DownloadID: d.ID,
			DestPath:   destPath,
			Elapsed:    outcome.Elapsed,
			Total:      outcome.Transferred,
		})
	case types.Cancelled:
		utils.Debug("Download %s cancelled after %d bytes", d.ID, outcome.Transferred)
		events.Emit(d.ProgressChan, events.DownloadCancelledMsg{
			DownloadID: d.ID,
			DestPath:   destPath,
			Downloaded: outcome.Transferred,
		})
	default:
		utils.Debug("Download %s failed: %v", d.ID, err)
		events.Emit(d.ProgressChan, events.DownloadErrorMsg{
			DownloadID: d.ID,
			DestPath:   destPath,
			Err:        err,
		})
	}

	return outcome
}

func (d *Downloader) transfer(ctx context.Context, req types.DownloadRequest, signal types.CancelSignal, start time.Time) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return req.DestPath, types.NewError(types.NetworkError, "invalid request", err)
	}

	utils.Debug("GET %s", req.URL)
	resp, err := d.Client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return req.DestPath, fmt.Errorf("%w: %v", types.ErrCancelled, ctx.Err())
		}
		return req.DestPath, types.NewError(types.NetworkError, "request failed", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			utils.Debug("Error closing response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return req.DestPath, types.NewStatusError(resp.StatusCode)
	}

	// net/http reports -1 when Content-Length is absent.
	total := resp.ContentLength
	if total < 0 {
		total = types.UnknownSize
	}
	d.State.Total.Store(total)

	destPath := resolveDestination(req, resp)

	lock, err := lockDestination(d.Runtime.GetLockDir(), destPath)
	if err != nil {
		return destPath, types.NewError(types.FilesystemError, "cannot lock destination", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			utils.Debug("Error releasing destination lock: %v", err)
		}
	}()

	outFile, err := os.Create(destPath)
	if err != nil {
		return destPath, types.NewError(types.FilesystemError, "cannot open destination", err)
	}
	defer func() {
		if err := outFile.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			utils.Debug("Error closing output file: %v", err)
		}
	}()

	utils.Debug("Streaming %s -> %s (total %s)", req.URL, destPath, sizeLabel(total))
	events.Emit(d.ProgressChan, events.DownloadStartedMsg{
		DownloadID: d.ID,
		URL:        req.URL,
		DestPath:   destPath,
		Total:      total,
		State:      d.State,
	})

	sniff := &sniffer{}
	buf := make([]byte, types.ChunkSize)

	for {
		// Cooperative cancellation: only between chunks.
		if signal.Cancelled() || ctx.Err() != nil {
			d.State.Cancelled.Store(true)
			if err := outFile.Sync(); err != nil {
				utils.Debug("Error flushing partial file: %v", err)
			}
			return destPath, types.ErrCancelled
		}

		nr, readErr := resp.Body.Read(buf)
		if nr > 0 {
			nw, writeErr := outFile.Write(buf[:nr])
			if nw > 0 {
				written := d.State.Add(int64(nw))
				elapsed := time.Since(start)
				events.Emit(d.ProgressChan, events.ProgressMsg{
					DownloadID: d.ID,
					Downloaded: written,
					Total:      total,
					Elapsed:    elapsed,
					Speed:      speed(written, elapsed),
				})
			}
			if writeErr != nil {
				return destPath, types.NewError(types.IOError, "write failed", writeErr)
			}
			if nw != nr {
				return destPath, types.NewError(types.IOError, "write failed", io.ErrShortWrite)
			}
			if sniff.add(buf[:nr]) {
				d.emitDetected(sniff.head)
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break // Done reading
			}
			if ctx.Err() != nil {
				d.State.Cancelled.Store(true)
				return destPath, fmt.Errorf("%w: %v", types.ErrCancelled, ctx.Err())
			}
			return destPath, types.NewError(types.IOError, "read failed", readErr)
		}
	}

	// Short bodies never fill the sniff buffer.
	if sniff.finish() {
		d.emitDetected(sniff.head)
	}

	if err := outFile.Sync(); err != nil {
		return destPath, types.NewError(types.IOError, "sync failed", err)
	}
	if err := outFile.Close(); err != nil {
		return destPath, types.NewError(types.IOError, "close failed", err)
	}

	return destPath, nil
}

func (d *Downloader) emitDetected(head []byte) {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return
	}
	utils.Debug("Detected content type %s (.%s)", kind.MIME.Value, kind.Extension)
	d.State.SetContentType(kind.MIME.Value)
	events.Emit(d.ProgressChan, events.ContentDetectedMsg{
		DownloadID: d.ID,
		MIME:       kind.MIME.Value,
		Extension:  kind.Extension,
	})
}

// resolveDestination appends a file name when the destination is a directory.
func resolveDestination(req types.DownloadRequest, resp *http.Response) string {
	if !utils.IsDirectoryTarget(req.DestPath) {
		return req.DestPath
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	name, ok := utils.DetermineFilename(finalURL, resp.Header)
	if !ok {
		name = types.DefaultFilename
	}
	return filepath.Join(req.DestPath, name)
}

// sniffer collects the first sniffLen bytes of the body, once.
type sniffer struct {
	head []byte
	done bool
}

// add reports true exactly once, when enough bytes have been collected.
func (s *sniffer) add(p []byte) bool {
	if s.done {
		return false
	}
	need := sniffLen - len(s.head)
	if len(p) > need {
		p = p[:need]
	}
	s.head = append(s.head, p...)
	if len(s.head) >= sniffLen {
		s.done = true
		return true
	}
	return false
}

// finish reports true if a short, non-empty head is still pending.
func (s *sniffer) finish() bool {
	if s.done || len(s.head) == 0 {
		return false
	}
	s.done = true
	return true
}

func speed(bytes int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) / elapsed.Seconds()
}

func sizeLabel(total int64) string {
	if total < 0 {
		return "unknown"
	}
	return utils.FormatSize(total)
}
