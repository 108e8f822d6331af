// Package engine ties the streaming downloader to the cancel-key watcher.
package engine

import (
	"context"

	"github.com/trackload/trackload/internal/engine/cancel"
	"github.com/trackload/trackload/internal/engine/events"
	"github.com/trackload/trackload/internal/engine/single"
	"github.com/trackload/trackload/internal/engine/types"
	"github.com/trackload/trackload/internal/utils"
)

// Runner executes one download with a cancel-key watcher beside it.
type Runner struct {
	ID           string
	ProgressChan chan<- any
	State        *types.TransferState
	Runtime      *types.RuntimeConfig
}

// NewRunner creates a runner. state may be nil.
func NewRunner(id string, progressCh chan<- any, state *types.TransferState, runtime *types.RuntimeConfig) *Runner {
	if state == nil {
		state = types.NewTransferState(id)
	}
	return &Runner{
		ID:           id,
		ProgressChan: progressCh,
		State:        state,
		Runtime:      runtime,
	}
}

// Run waits for start, then streams req while watching keys for the cancel
// key. A nil start begins immediately. The watcher never outlives Run.
func (r *Runner) Run(ctx context.Context, req types.DownloadRequest, start <-chan struct{}, keys <-chan string) types.Outcome {
	if start != nil {
		select {
		case <-start:
		case <-ctx.Done():
			utils.Debug("Download %s abandoned before start", r.ID)
			outcome := types.OutcomeFromError(types.ErrCancelled)
			outcome.DestPath = req.DestPath
			outcome.Total = types.UnknownSize
			events.Emit(r.ProgressChan, events.DownloadCancelledMsg{
				DownloadID: r.ID,
				DestPath:   req.DestPath,
			})
			return outcome
		}
	}

	signal := cancel.NewSignal()
	finished := make(chan struct{})

	watcher := cancel.NewWatcher(keys, r.Runtime.GetCancelKey(), r.Runtime.GetWatchInterval())
	watcher.OnCancel = func() {
		events.Emit(r.ProgressChan, events.CancelRequestedMsg{DownloadID: r.ID})
	}

	watchDone := make(chan bool, 1)
	go func() {
		watchDone <- watcher.Watch(signal, finished)
	}()

	d := single.NewDownloader(r.ID, r.ProgressChan, r.State, r.Runtime)
	result := make(chan types.Outcome, 1)
	go func() {
		result <- d.Download(ctx, req, signal)
	}()

	var outcome types.Outcome
	select {
	case outcome = <-result:
		close(finished)
		<-watchDone
	case pressed := <-watchDone:
		if pressed {
			utils.Debug("Download %s: cancellation requested", r.ID)
		}
		// The downloader observes the signal at its next chunk boundary.
		outcome = <-result
		close(finished)
	}

	return outcome
}
