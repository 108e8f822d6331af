package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/trackload/trackload/internal/config"
	"github.com/trackload/trackload/internal/engine"
	"github.com/trackload/trackload/internal/engine/types"
	"github.com/trackload/trackload/internal/history"
	"github.com/trackload/trackload/internal/progress"
	"github.com/trackload/trackload/internal/utils"
)

var getCmd = &cobra.Command{
	Use:   "get <url>",
	Short: "Download a URL without prompts",
	Long: `get starts downloading immediately and prints progress on one line.
Ctrl+C stops the transfer at the next chunk and keeps the partial file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := currentSettings()

		dest, _ := cmd.Flags().GetString("output")
		if dest == "" {
			dest = defaultDestination(args[0])
		}

		keys, stop := interruptKeys(settings.General.CancelKey)
		defer stop()

		var rec recorder
		if store := openHistory(settings); store != nil {
			defer func() { _ = store.Close() }()
			rec = store
		}

		req := types.DownloadRequest{URL: args[0], DestPath: dest}
		runHeadless(cmd.Context(), cmd.OutOrStdout(), req, settings, keys, rec)
		// Every outcome has already been reported; none is a usage error.
		return nil
	},
}

// recorder stores finished runs.
type recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// runHeadless streams req to disk, printing events to out, and returns the
// outcome after its message has been printed.
func runHeadless(ctx context.Context, out io.Writer, req types.DownloadRequest, settings *config.Settings, keys <-chan string, rec recorder) types.Outcome {
	id := uuid.New().String()
	progressCh := make(chan any, types.ProgressChannelBuffer)

	printer := progress.NewPrinter(out)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printer.Consume(progressCh)
	}()

	runtime := types.ConvertRuntimeConfig(settings.ToRuntimeConfig())
	runner := engine.NewRunner(id, progressCh, nil, runtime)

	startedAt := time.Now()
	outcome := runner.Run(ctx, req, nil, keys)

	close(progressCh)
	<-printed
	printer.Finish(outcome)

	if rec != nil {
		entry := history.NewEntry(id, req, outcome, runner.State.ContentType(), startedAt)
		if err := rec.Record(context.Background(), entry); err != nil {
			utils.Debug("Failed to record history: %v", err)
		}
	}
	return outcome
}

// interruptKeys turns SIGINT/SIGTERM into presses of the cancel key.
func interruptKeys(cancelKey string) (<-chan string, func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	keys := make(chan string, 1)
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigCh:
				utils.Debug("Received %v, requesting cancellation", sig)
				select {
				case keys <- cancelKey:
				default:
				}
			case <-quit:
				return
			}
		}
	}()

	stop := func() {
		signal.Stop(sigCh)
		close(quit)
	}
	return keys, stop
}

func init() {
	getCmd.Flags().StringP("output", "o", "", "destination file or directory (default: file name from the URL)")
}
