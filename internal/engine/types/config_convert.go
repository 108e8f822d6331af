package types

import "github.com/trackload/trackload/internal/config"

// ConvertRuntimeConfig converts the app-level RuntimeConfig to the engine-level RuntimeConfig.
func ConvertRuntimeConfig(rc *config.RuntimeConfig) *RuntimeConfig {
	if rc == nil {
		return &RuntimeConfig{}
	}
	return &RuntimeConfig{
		CancelKey:     rc.CancelKey,
		WatchInterval: rc.WatchInterval,
		LockDir:       rc.LockDir,
	}
}
