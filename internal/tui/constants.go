package tui

const (
	// Input Dimensions
	InputWidth = 60

	// Layout
	DefaultPaddingX  = 1
	DefaultPaddingY  = 0
	ProgressBarWidth = 60
	ProgressMargin   = 4

	// Buffered so the watcher never blocks key delivery.
	KeyChannelBuffer = 16

	Banner = "File Downloader Application"
)
