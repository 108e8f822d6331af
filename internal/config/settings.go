package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds all user-configurable application settings organized by category.
type Settings struct {
	General  GeneralSettings  `json:"general" mapstructure:"general"`
	Transfer TransferSettings `json:"transfer" mapstructure:"transfer"`
	Logging  LoggingSettings  `json:"logging" mapstructure:"logging"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	CancelKey        string `json:"cancel_key" mapstructure:"cancel_key" validate:"len=1"`
	ClipboardPrefill bool   `json:"clipboard_prefill" mapstructure:"clipboard_prefill"`
	RecordHistory    bool   `json:"record_history" mapstructure:"record_history"`
}

// TransferSettings tunes the download session.
type TransferSettings struct {
	WatchInterval time.Duration `json:"watch_interval" mapstructure:"watch_interval" validate:"gt=0"`
	LockDir       string        `json:"lock_dir" mapstructure:"lock_dir"`
}

// LoggingSettings controls the debug log.
type LoggingSettings struct {
	Level string `json:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	File  string `json:"file" mapstructure:"file"`
}

// EnvPrefix is the prefix for environment overrides, e.g. TRACKLOAD_GENERAL_CANCEL_KEY.
const EnvPrefix = "TRACKLOAD"

// DefaultSettings returns a new Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	return &Settings{
		General: GeneralSettings{
			CancelKey:        "c",
			ClipboardPrefill: true,
			RecordHistory:    true,
		},
		Transfer: TransferSettings{
			WatchInterval: 100 * time.Millisecond,
		},
		Logging: LoggingSettings{
			Level: "info",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault("general.cancel_key", d.General.CancelKey)
	v.SetDefault("general.clipboard_prefill", d.General.ClipboardPrefill)
	v.SetDefault("general.record_history", d.General.RecordHistory)
	v.SetDefault("transfer.watch_interval", d.Transfer.WatchInterval.String())
	v.SetDefault("transfer.lock_dir", d.Transfer.LockDir)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
}

// GetConfigDir returns the per-user directory holding settings, logs and history.
func GetConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "trackload")
}

// GetSettingsPath returns the path to the settings JSON file.
func GetSettingsPath() string {
	return filepath.Join(GetConfigDir(), "settings.json")
}

// GetHistoryPath returns the path to the run history database.
func GetHistoryPath() string {
	return filepath.Join(GetConfigDir(), "history.db")
}

// GetLogPath returns the configured log file or the default inside the config dir.
func (s *Settings) GetLogPath() string {
	if s.Logging.File != "" {
		return s.Logging.File
	}
	return filepath.Join(GetConfigDir(), "debug.log")
}

// LoadSettings loads settings from disk. Returns defaults if file doesn't exist.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom loads settings from path, applying defaults and
// TRACKLOAD_* environment overrides.
func LoadSettingsFrom(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return settings, nil
}


// SaveSettings saves settings to the default path.
func SaveSettings(s *Settings) error {
	return SaveSettingsTo(s, GetSettingsPath())
}

// SaveSettingsTo writes settings to path atomically.
func SaveSettingsTo(s *Settings, path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	// Durations are stored as strings ("100ms") so the file stays hand-editable.
	doc := map[string]any{
		"general": s.General,
		"transfer": map[string]any{
			"watch_interval": s.Transfer.WatchInterval.String(),
			"lock_dir":       s.Transfer.LockDir,
		},
		"logging": s.Logging,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write: write to temp file, then rename
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

// RuntimeConfig is the subset of settings the download engine consumes.
type RuntimeConfig struct {
	CancelKey     string
	WatchInterval time.Duration
	LockDir       string
}

// ToRuntimeConfig creates a RuntimeConfig from user Settings
func (s *Settings) ToRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		CancelKey:     s.General.CancelKey,
		WatchInterval: s.Transfer.WatchInterval,
		LockDir:       s.Transfer.LockDir,
	}
}
