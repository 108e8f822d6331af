package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/trackload/trackload/internal/config"
	"github.com/trackload/trackload/internal/tui"
	"github.com/trackload/trackload/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// globalSettings is loaded once per invocation in PersistentPreRunE.
var globalSettings *config.Settings

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "trackload",
	Short:   "Download a single file over HTTP with live progress",
	Long:    `TrackLoad asks for a URL and a destination, streams the file to disk and shows progress. Press the cancel key during a transfer to stop it.`,
	Version: Version,
	Args:    cobra.NoArgs,

	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initializeGlobalState(cmd)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = utils.SyncLogger()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return startTUI()
	},
}

// startTUI runs the interactive session
func startTUI() error {
	settings := currentSettings()

	opts := tui.Options{Settings: settings}
	store := openHistory(settings)
	if store != nil {
		defer func() { _ = store.Close() }()
		opts.Recorder = store
	}

	p := tea.NewProgram(tui.NewRootModel(opts))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

// initializeGlobalState loads settings and points the logger at its file.
// Broken settings fall back to defaults so the tool stays usable.
func initializeGlobalState(cmd *cobra.Command) {
	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v; using default settings\n", err)
		settings = config.DefaultSettings()
	}
	globalSettings = settings

	if err := utils.InitLogger(settings.Logging.Level, settings.GetLogPath()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: logging disabled: %v\n", err)
	}
	utils.Info("trackload %s (built %s)", Version, BuildTime)
}

func currentSettings() *config.Settings {
	if globalSettings == nil {
		return config.DefaultSettings()
	}
	return globalSettings
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate("TrackLoad version {{.Version}}\n")
	rootCmd.AddCommand(getCmd, historyCmd, configCmd)
}
