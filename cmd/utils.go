package cmd

import (
	"github.com/trackload/trackload/internal/config"
	"github.com/trackload/trackload/internal/engine/types"
	"github.com/trackload/trackload/internal/history"
	"github.com/trackload/trackload/internal/utils"
)

// openHistory opens the history store when recording is enabled. Failures
// only disable recording.
func openHistory(settings *config.Settings) *history.Store {
	if !settings.General.RecordHistory {
		return nil
	}
	store, err := history.Open(config.GetHistoryPath())
	if err != nil {
		utils.Debug("History disabled: %v", err)
		return nil
	}
	return store
}

// defaultDestination is the URL's file name in the working directory.
func defaultDestination(rawURL string) string {
	if name, ok := utils.FilenameFromURL(rawURL); ok {
		return name
	}
	return types.DefaultFilename
}

// shortID trims a UUID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
